package cmd

import (
	"fmt"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/futbridge/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the order journal",
	Long: `Query the orders, fills and P&L snapshots the bridge recorded to SQLite.

Subcommands:
  runs   - List recorded runs, newest first
  orders - List order updates of a run
  fills  - List fills of a run
  pnl    - List P&L and position snapshots of a run

Commands that take a run id use the newest run when it is omitted.

Examples:
  futbridge journal runs
  futbridge journal fills --org
  futbridge journal fills 01HV... --csv > fills.csv`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalOrdersCmd = &cobra.Command{
	Use:   "orders [run-id]",
	Short: "List order updates of a run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalOrders,
}

var journalFillsCmd = &cobra.Command{
	Use:   "fills [run-id]",
	Short: "List fills of a run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalFills,
}

var journalPnLCmd = &cobra.Command{
	Use:   "pnl [run-id]",
	Short: "List P&L snapshots of a run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalPnL,
}

var (
	journalDBPath string
	journalCSV    bool
	journalOrg    bool
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalOrdersCmd)
	journalCmd.AddCommand(journalFillsCmd)
	journalCmd.AddCommand(journalPnLCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (default from config)")
	journalFillsCmd.Flags().BoolVar(&journalCSV, "csv", false, "write CSV")
	journalFillsCmd.Flags().BoolVar(&journalOrg, "org", false, "write an org-mode table")
}

func openJournal() (*journal.SQLite, error) {
	path := journalDBPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Journal.DBPath
	}
	if path == "" {
		return nil, errors.New("no journal database configured")
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, errors.WithMessage(err, "open db")
	}
	return j, nil
}

// runArg returns the run named in args, or the newest run.
func runArg(j *journal.SQLite, args []string) (string, error) {
	if len(args) == 1 {
		r, err := j.GetRun(args[0])
		if err != nil {
			return "", err
		}
		return r.RunID, nil
	}
	runs, err := j.ListRuns()
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", journal.ErrRunNotFound
	}
	return runs[0].RunID, nil
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05.000")
}

func price(f float64) string {
	if math.IsNaN(f) {
		return "-"
	}
	return fmt.Sprintf("%.4f", f)
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tENDED\tUSER\tSERVER")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.RunID, stamp(r.Started), stamp(r.Ended), r.User, r.Server)
	}
	return w.Flush()
}

func runJournalOrders(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	run, err := runArg(j, args)
	if err != nil {
		return err
	}
	recs, err := j.ListOrders(run)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tORDER\tSYMBOL\tSIDE\tTYPE\tDUR\tQTY\tEXEC\tPRICE\tAVG\tSTATE\tTEXT")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
			stamp(r.Time), r.OrderNum, r.Symbol, r.Side, r.Type, r.Duration, r.Qty, r.ExecQty,
			price(r.Price), price(r.AvgFillPrice), r.State, r.Text)
	}
	return w.Flush()
}

func runJournalFills(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	run, err := runArg(j, args)
	if err != nil {
		return err
	}
	fills, err := j.ListFills(run)
	if err != nil {
		return err
	}
	switch {
	case journalCSV:
		return journal.WriteFillsCSV(os.Stdout, fills)
	case journalOrg:
		fmt.Println(journal.FormatFillsOrg(fills))
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tORDER\tSYMBOL\tSIDE\tQTY\tPRICE\tAVG\tEXEC")
	for _, f := range fills {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%s\t%s\t%d\n",
			stamp(f.Time), f.OrderNum, f.Symbol, f.Side, f.Qty, price(f.Price), price(f.AvgFillPrice), f.ExecQty)
	}
	return w.Flush()
}

func runJournalPnL(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	run, err := runArg(j, args)
	if err != nil {
		return err
	}
	recs, err := j.ListPnL(run)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSYMBOL\tPNL\tREALIZED\tUNREALIZED\tBALANCE\tQTY\tAVG")
	for _, r := range recs {
		sym := r.Symbol
		if sym == "" {
			sym = "account"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n", stamp(r.Time), sym,
			price(r.PnL), price(r.Realized), price(r.Unrealized), price(r.Balance), r.Quantity, price(r.AvgPrice))
	}
	return w.Flush()
}
