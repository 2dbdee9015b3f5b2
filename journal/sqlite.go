package journal

import (
	"database/sql"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/rustyeddy/futbridge/account"
	"github.com/rustyeddy/futbridge/orders"
	"github.com/rustyeddy/futbridge/pkg/id"
)

var ErrRunNotFound = errors.New("run not found")

type SQLite struct {
	db  *sql.DB
	run string
}

// NewSQLite opens (or creates) the journal at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open journal %s", path)
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create journal schema")
	}

	return &SQLite{db: db}, nil
}

// StartRun begins a new run; every later record is tagged with its id.
func (j *SQLite) StartRun(user, server string) (string, error) {
	run := id.New()
	_, err := j.db.Exec(`INSERT INTO runs (run_id, started, user, server) VALUES (?, ?, ?, ?)`,
		run, time.Now().UTC(), user, server)
	if err != nil {
		return "", errors.Wrap(err, "start run")
	}
	j.run = run
	return run, nil
}

// RunID returns the id of the run this journal writes to.
func (j *SQLite) RunID() string { return j.run }

// nullable stores NaN, the "no price" marker, as NULL.
func nullable(f float64) any {
	if math.IsNaN(f) {
		return nil
	}
	return f
}

func (j *SQLite) RecordOrder(o orders.Order) error {
	r := orderRecord(j.run, o)
	_, err := j.db.Exec(`
		INSERT INTO orders
		(run_id, client_order_id, order_num, symbol, side, type, duration, status, completion, state,
		 price, trigger_price, avg_fill_price, qty, exec_qty, text, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, int64(r.ClientOrderID), r.OrderNum, r.Symbol, r.Side, r.Type, r.Duration, r.Status,
		r.Completion, r.State, nullable(r.Price), nullable(r.TriggerPrice), nullable(r.AvgFillPrice),
		int64(r.Qty), int64(r.ExecQty), r.Text, r.Time,
	)
	return errors.Wrap(err, "record order")
}

func (j *SQLite) RecordFill(o orders.Order) error {
	if err := j.RecordOrder(o); err != nil {
		return err
	}
	r := fillRecord(j.run, o)
	_, err := j.db.Exec(`
		INSERT INTO fills
		(run_id, client_order_id, order_num, symbol, side, price, qty, avg_fill_price, exec_qty, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, int64(r.ClientOrderID), r.OrderNum, r.Symbol, r.Side, nullable(r.Price), int64(r.Qty),
		nullable(r.AvgFillPrice), int64(r.ExecQty), r.Time,
	)
	return errors.Wrap(err, "record fill")
}

func (j *SQLite) RecordPnL(p account.PnL) error {
	return j.insertPnL(PnLRecord{
		RunID:      j.run,
		Time:       stampTime(p.Timestamp),
		PnL:        p.PnL,
		Realized:   p.Realized,
		Unrealized: p.Unrealized,
		Balance:    p.AccountBalance,
		AvgPrice:   math.NaN(),
	})
}

func (j *SQLite) RecordPosition(asset string, p account.Position) error {
	return j.insertPnL(PnLRecord{
		RunID:      j.run,
		Symbol:     asset,
		Time:       stampTime(p.Timestamp),
		PnL:        math.NaN(),
		Realized:   math.NaN(),
		Unrealized: math.NaN(),
		Balance:    math.NaN(),
		Quantity:   p.Quantity,
		AvgPrice:   p.AveragePrice,
	})
}

func (j *SQLite) insertPnL(r PnLRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO pnl
		(run_id, symbol, time, pnl, realized, unrealized, balance, quantity, avg_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Symbol, r.Time, nullable(r.PnL), nullable(r.Realized), nullable(r.Unrealized),
		nullable(r.Balance), r.Quantity, nullable(r.AvgPrice),
	)
	return errors.Wrap(err, "record pnl")
}

// Close ends the current run, if any, and closes the database.
func (j *SQLite) Close() error {
	if j.run != "" {
		if _, err := j.db.Exec(`UPDATE runs SET ended = ? WHERE run_id = ?`, time.Now().UTC(), j.run); err != nil {
			_ = j.db.Close()
			return errors.Wrap(err, "end run")
		}
	}
	return j.db.Close()
}
