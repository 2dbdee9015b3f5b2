package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/futbridge/monitor"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print the status frames of a running bridge",
	Long: `Connect to the status monitor of a running bridge and print each frame.

Example:
  futbridge monitor --url ws://localhost:8765/ws -n 5`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

var (
	monitorURL   string
	monitorCount int
)

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorURL, "url", "ws://localhost:8765/ws", "monitor endpoint")
	monitorCmd.Flags().IntVarP(&monitorCount, "count", "n", 0, "stop after this many frames (0 runs until interrupted)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c, err := monitor.Dial(ctx, monitorURL)
	if err != nil {
		return err
	}
	defer c.Close()
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	for n := 0; monitorCount == 0 || n < monitorCount; n++ {
		f, err := c.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		printFrame(f)
	}
	return nil
}

func printFrame(f monitor.Frame) {
	fmt.Printf("#%d %s %s account=%s pnl=%.2f balance=%.2f\n",
		f.Seq, f.Time.Local().Format("15:04:05"), f.State, f.Account, f.PnL.PnL, f.PnL.Balance)
	for _, s := range f.Symbols {
		fmt.Printf("  %-14s %s x %s last %s pos %d\n", s.Symbol, opt(s.Bid), opt(s.Ask), opt(s.Last), s.Position)
	}
	for _, o := range f.Orders {
		fmt.Printf("  order %d %s %s %d/%d @ %s %s\n", o.OrderNum, o.Side, o.Symbol, o.Filled, o.Qty, opt(o.Price), o.State)
	}
}

func opt(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p)
}
