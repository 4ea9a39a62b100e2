package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/icelift/icelift"
	"github.com/icelift/icelift/state"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "icelift",
		Usage:   "Migrate Iceberg tables between S3-compatible object stores",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "icelift.yaml",
				Usage:   "Path to configuration file",
			},
			&cli.StringFlag{
				Name:  "state",
				Usage: "Override the state file path",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "Emit logs as JSON",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Sync eligible tables and rewrite their metadata",
				Action: runSync,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-sync tables already marked synced",
					},
					&cli.BoolFlag{
						Name:  "skip-rewrite",
						Usage: "Sync objects only, leave metadata paths untouched",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Compute transfer plans without moving anything",
					},
					&cli.StringSliceFlag{
						Name:  "table",
						Usage: "Restrict to NAMESPACE.TABLE (repeatable)",
					},
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Skip the confirmation prompt",
					},
				},
			},
			{
				Name:   "rewrite",
				Usage:  "Re-run the metadata path rewrite for synced tables",
				Action: runRewrite,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "table",
						Usage: "Restrict to NAMESPACE.TABLE (repeatable)",
					},
				},
			},
			{
				Name:   "inventory",
				Usage:  "Discover tables in the catalog",
				Action: runInventory,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Value:   "text",
						Usage:   "Output format (text, json)",
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Seed pending state records for discovered tables",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show per-table migration state",
				Action: runStatus,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Value:   "text",
						Usage:   "Output format (text, json)",
					},
				},
			},
			{
				Name:   "clear",
				Usage:  "Delete migrated objects and reset table state to pending",
				Action: runClear,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "table",
						Usage: "Restrict to NAMESPACE.TABLE (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Report what would be deleted without deleting",
					},
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Skip the confirmation prompt",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogger(c *cli.Context) (*log.Logger, error) {
	level, err := log.ParseLevel(c.String("log-level"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.String("log-level"), err)
	}
	logger := log.New()
	logger.SetLevel(level)
	if c.Bool("log-json") {
		logger.SetFormatter(&log.JSONFormatter{})
	}
	return logger, nil
}

func newMigrator(ctx context.Context, c *cli.Context) (*icelift.Migrator, error) {
	logger, err := setupLogger(c)
	if err != nil {
		return nil, err
	}

	cfg, err := icelift.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("state") {
		cfg.StatePath = c.String("state")
	}

	return icelift.New(ctx, cfg, icelift.WithLogger(logger))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// attachProgress renders a per-table transfer bar when stdout is a
// terminal. Tables run sequentially, so one bar at a time is enough.
func attachProgress(m *icelift.Migrator) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return
	}

	syncer := m.Syncer()
	var bar *progressbar.ProgressBar

	syncer.OnPlan = func(namespace, table string, planned int, plannedBytes int64) {
		if bar != nil {
			bar.Finish()
		}
		if planned == 0 {
			bar = nil
			return
		}
		bar = progressbar.NewOptions64(
			plannedBytes,
			progressbar.OptionSetDescription(namespace+"."+table),
			progressbar.OptionShowBytes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionClearOnFinish(),
		)
	}
	syncer.OnTransfer = func(key string, n int64) {
		if bar != nil {
			bar.Add64(n)
		}
	}
}

func runSync(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	m, err := newMigrator(ctx, c)
	if err != nil {
		return err
	}

	opts := icelift.RunOptions{
		Force:       c.Bool("force"),
		SkipRewrite: c.Bool("skip-rewrite"),
		DryRun:      c.Bool("dry-run"),
		Tables:      c.StringSlice("table"),
	}

	if !opts.DryRun && !c.Bool("yes") {
		if !confirm("Sync tables to the destination store?") {
			fmt.Println("Aborted.")
			return nil
		}
	}

	attachProgress(m)

	summary, err := m.Run(ctx, opts)
	if err != nil {
		if errors.Is(err, icelift.ErrNoTables) {
			fmt.Println("No tables discovered in the catalog.")
			return nil
		}
		return err
	}

	if opts.DryRun {
		fmt.Printf("Dry run: %d tables eligible, %d objects (%d bytes) would transfer.\n",
			summary.Eligible, summary.PlannedObjects, summary.PlannedBytes)
		return nil
	}

	fmt.Printf("Sync complete: %d synced, %d failed (%d already synced, %d metadata rewrites",
		summary.Synced, summary.Failed, summary.SkippedSynced, summary.Rewritten)
	if summary.RewriteFailed > 0 {
		fmt.Printf(", %d rewrite failures", summary.RewriteFailed)
	}
	fmt.Println(").")

	if summary.Failed > 0 || summary.RewriteFailed > 0 {
		return cli.Exit("some tables did not migrate cleanly", 1)
	}
	return nil
}

func runRewrite(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	m, err := newMigrator(ctx, c)
	if err != nil {
		return err
	}

	summary, err := m.Rewrite(ctx, c.StringSlice("table"))
	if err != nil {
		return err
	}

	fmt.Printf("Rewrite complete: %d tables rewritten, %d failed.\n",
		summary.Rewritten, summary.RewriteFailed)
	if summary.RewriteFailed > 0 {
		return cli.Exit("some rewrites failed", 1)
	}
	return nil
}

func runInventory(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	m, err := newMigrator(ctx, c)
	if err != nil {
		return err
	}

	entries, err := m.Inventory(ctx)
	if err != nil {
		if errors.Is(err, icelift.ErrNoTables) {
			fmt.Println("No tables discovered in the catalog.")
			return nil
		}
		return err
	}

	if c.Bool("save") {
		st := m.State()
		for _, e := range entries {
			st.Table(e.Namespace, e.Table)
		}
		if err := st.Save(); err != nil {
			return err
		}
	}

	if c.String("output") == "json" {
		return printJSON(entries)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAMESPACE\tTABLE\tLOCATION")
	for _, e := range entries {
		location := e.Location
		if e.Err != "" {
			location = "error: " + e.Err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Namespace, e.Table, location)
	}
	return w.Flush()
}

// openStateStore loads only the migration state, so read-only commands
// work offline, without destination credentials or a reachable catalog.
func openStateStore(configPath, stateOverride string, logger log.FieldLogger) (*state.Store, error) {
	cfg, err := icelift.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if stateOverride != "" {
		cfg.StatePath = stateOverride
	}
	st := state.NewStore(cfg.StatePath, logger)
	if err := st.Load(); err != nil {
		return nil, err
	}
	return st, nil
}

func runStatus(c *cli.Context) error {
	logger, err := setupLogger(c)
	if err != nil {
		return err
	}

	st, err := openStateStore(c.String("config"), c.String("state"), logger)
	if err != nil {
		return err
	}

	records := st.Records()
	if len(records) == 0 {
		fmt.Println("No tables tracked yet.")
		return nil
	}

	if c.String("output") == "json" {
		return printJSON(records)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tSYNC\tOBJECTS\tBYTES\tREWRITES\tREGISTER\tERROR")
	for _, rec := range records {
		errMsg := rec.Sync.Error
		if errMsg == "" {
			errMsg = rec.Sync.RewriteError
		}
		fmt.Fprintf(w, "%s.%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			rec.Namespace, rec.Table,
			rec.Sync.Status, rec.Sync.ObjectCount, rec.Sync.TotalBytes,
			rec.Sync.RewriteCount, rec.Register.Status, errMsg)
	}
	return w.Flush()
}

func runClear(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	m, err := newMigrator(ctx, c)
	if err != nil {
		return err
	}

	dryRun := c.Bool("dry-run")
	if !dryRun && !c.Bool("yes") {
		if !confirm("Delete migrated objects from the destination store?") {
			fmt.Println("Aborted.")
			return nil
		}
	}

	result, err := m.Clear(ctx, c.StringSlice("table"), dryRun)
	if err != nil {
		return err
	}

	if len(result.Objects) == 0 {
		fmt.Println("No tables tracked yet.")
		return nil
	}
	fqns := make([]string, 0, len(result.Objects))
	for fqn := range result.Objects {
		fqns = append(fqns, fqn)
	}
	sort.Strings(fqns)
	for _, fqn := range fqns {
		count := result.Objects[fqn]
		if dryRun {
			fmt.Printf("%s: %d objects would be deleted\n", fqn, count)
		} else {
			fmt.Printf("%s: %d objects deleted, state reset to pending\n", fqn, count)
		}
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
