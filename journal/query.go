package journal

import (
	"database/sql"
	"math"

	"github.com/pkg/errors"
)

func float(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}

// ListRuns returns every run, newest first.
func (j *SQLite) ListRuns() ([]Run, error) {
	rows, err := j.db.Query(`
		SELECT run_id, started, ended, user, server
		FROM runs
		ORDER BY run_id DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r     Run
		ended sql.NullTime
	)
	if err := s.Scan(&r.RunID, &r.Started, &ended, &r.User, &r.Server); err != nil {
		return Run{}, err
	}
	if ended.Valid {
		r.Ended = ended.Time
	}
	return r, nil
}

// GetRun returns a single run by id.
func (j *SQLite) GetRun(runID string) (Run, error) {
	row := j.db.QueryRow(`
		SELECT run_id, started, ended, user, server
		FROM runs
		WHERE run_id = ?`, runID)

	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, errors.WithMessagef(ErrRunNotFound, "run %q", runID)
		}
		return Run{}, err
	}
	return r, nil
}

// ListOrders returns every order update of a run in the order it was applied.
func (j *SQLite) ListOrders(runID string) ([]OrderRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, client_order_id, order_num, symbol, side, type, duration, status, completion, state,
		       price, trigger_price, avg_fill_price, qty, exec_qty, text, time
		FROM orders
		WHERE run_id = ?
		ORDER BY id ASC`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var (
			rec              OrderRecord
			cid              int64
			price, trig, avg sql.NullFloat64
			qty, exec        int64
		)
		if err := rows.Scan(
			&rec.RunID, &cid, &rec.OrderNum, &rec.Symbol, &rec.Side, &rec.Type, &rec.Duration,
			&rec.Status, &rec.Completion, &rec.State, &price, &trig, &avg, &qty, &exec, &rec.Text, &rec.Time,
		); err != nil {
			return nil, err
		}
		rec.ClientOrderID = uint64(cid)
		rec.Price, rec.TriggerPrice, rec.AvgFillPrice = float(price), float(trig), float(avg)
		rec.Qty, rec.ExecQty = uint64(qty), uint64(exec)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListFills returns the fills of a run, oldest first.
func (j *SQLite) ListFills(runID string) ([]FillRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, client_order_id, order_num, symbol, side, price, qty, avg_fill_price, exec_qty, time
		FROM fills
		WHERE run_id = ?
		ORDER BY id ASC`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "list fills")
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var (
			rec        FillRecord
			cid        int64
			price, avg sql.NullFloat64
			qty, exec  int64
		)
		if err := rows.Scan(
			&rec.RunID, &cid, &rec.OrderNum, &rec.Symbol, &rec.Side, &price, &qty, &avg, &exec, &rec.Time,
		); err != nil {
			return nil, err
		}
		rec.ClientOrderID = uint64(cid)
		rec.Price, rec.AvgFillPrice = float(price), float(avg)
		rec.Qty, rec.ExecQty = uint64(qty), uint64(exec)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPnL returns the P&L and position snapshots of a run, oldest first.
func (j *SQLite) ListPnL(runID string) ([]PnLRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, symbol, time, pnl, realized, unrealized, balance, quantity, avg_price
		FROM pnl
		WHERE run_id = ?
		ORDER BY id ASC`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "list pnl")
	}
	defer rows.Close()

	var out []PnLRecord
	for rows.Next() {
		var (
			rec                              PnLRecord
			pnl, real, unreal, bal, avgPrice sql.NullFloat64
		)
		if err := rows.Scan(
			&rec.RunID, &rec.Symbol, &rec.Time, &pnl, &real, &unreal, &bal, &rec.Quantity, &avgPrice,
		); err != nil {
			return nil, err
		}
		rec.PnL, rec.Realized, rec.Unrealized = float(pnl), float(real), float(unreal)
		rec.Balance, rec.AvgPrice = float(bal), float(avgPrice)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
