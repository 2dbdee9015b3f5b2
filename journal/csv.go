package journal

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"time"
)

var fillsHeader = []string{"run_id", "client_order_id", "order_num", "symbol", "side", "price", "qty", "avg_fill_price", "exec_qty", "time"}

// WriteFillsCSV writes fills with a header row.
func WriteFillsCSV(w io.Writer, fills []FillRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fillsHeader); err != nil {
		return err
	}
	for _, fl := range fills {
		err := cw.Write([]string{
			fl.RunID,
			strconv.FormatUint(fl.ClientOrderID, 10),
			strconv.FormatUint(uint64(fl.OrderNum), 10),
			fl.Symbol,
			fl.Side,
			f(fl.Price),
			strconv.FormatUint(fl.Qty, 10),
			f(fl.AvgFillPrice),
			strconv.FormatUint(fl.ExecQty, 10),
			fl.Time.Format(time.RFC3339Nano),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func f(x float64) string {
	if math.IsNaN(x) {
		return ""
	}
	return strconv.FormatFloat(x, 'f', 6, 64)
}
