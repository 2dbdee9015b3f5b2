package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatFillOrg renders a fill as an Org-mode block. Structured facts go in
// a PROPERTIES drawer; the Review heading is left for notes.
func FormatFillOrg(fl FillRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Fill: %s %s %d @ %s (%s)\n", fl.Symbol, fl.Side, fl.Qty, f(fl.Price), shortID(fl.RunID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":RUN_ID: %s\n", fl.RunID)
	fmt.Fprintf(&b, ":CLIENT_ORDER_ID: %d\n", fl.ClientOrderID)
	fmt.Fprintf(&b, ":ORDER_NUM: %d\n", fl.OrderNum)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", fl.Symbol)
	fmt.Fprintf(&b, ":SIDE: %s\n", fl.Side)
	fmt.Fprintf(&b, ":PRICE: %s\n", f(fl.Price))
	fmt.Fprintf(&b, ":QTY: %d\n", fl.Qty)
	fmt.Fprintf(&b, ":AVG_FILL_PRICE: %s\n", f(fl.AvgFillPrice))
	fmt.Fprintf(&b, ":EXEC_QTY: %d\n", fl.ExecQty)
	fmt.Fprintf(&b, ":TIME: %s\n", fl.Time.UTC().Format(time.RFC3339))
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatFillsOrg renders multiple fills separated by blank lines.
func FormatFillsOrg(fills []FillRecord) string {
	var b strings.Builder
	for i, fl := range fills {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatFillOrg(fl))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}
