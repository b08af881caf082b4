package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/forage-sim/internal/api"
	"github.com/talgya/forage-sim/internal/config"
	"github.com/talgya/forage-sim/internal/engine"
	"github.com/talgya/forage-sim/internal/entropy"
	"github.com/talgya/forage-sim/internal/export"
	"github.com/talgya/forage-sim/internal/logging"
	"github.com/talgya/forage-sim/internal/persistence"
	"github.com/talgya/forage-sim/internal/stats"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every replicate of a scenario",
		Long: `Run every replicate of a scenario and export the results.

Exports go to a timestamped directory under output.dir. With --db, each
replicate is also stored in SQLite for "foragesim serve". With --serve,
step summaries are streamed live over a websocket while the run goes.

Examples:
  foragesim run -c scenario.yaml
  foragesim run -c scenario.yaml --seed 7 --out results
  foragesim run -c scenario.yaml --db runs.db --serve :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			sc, err := config.Load(path)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				sc.Seed, _ = cmd.Flags().GetInt64("seed")
			}
			if cmd.Flags().Changed("out") {
				sc.Output.Dir, _ = cmd.Flags().GetString("out")
			}
			if cmd.Flags().Changed("db") {
				sc.Output.SQLite, _ = cmd.Flags().GetString("db")
			}
			serveAddr, _ := cmd.Flags().GetString("serve")

			if err := logging.Setup(sc.Logging.Level, sc.Logging.Format); err != nil {
				return err
			}
			if err := sc.Validate(); err != nil {
				return fmt.Errorf("invalid scenario: %w", err)
			}
			sc.Seed = entropy.ResolveSeed(sc.Seed)

			return runScenario(cmd.OutOrStdout(), sc, serveAddr)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Scenario YAML file (defaults when empty)")
	cmd.Flags().Int64("seed", 0, "Base seed, overriding the scenario (0 draws one)")
	cmd.Flags().String("out", "", "Export directory, overriding output.dir")
	cmd.Flags().String("db", "", "SQLite run database, overriding output.sqlite")
	cmd.Flags().String("serve", "", "Serve the live stream and stored runs on this address")
	return cmd
}

func runScenario(out io.Writer, sc *config.Scenario, serveAddr string) error {
	cfg, err := sc.Engine()
	if err != nil {
		return err
	}
	scheduler, err := engine.NewScheduler(cfg)
	if err != nil {
		return err
	}
	scenarioYAML, err := sc.YAML()
	if err != nil {
		return fmt.Errorf("encoding scenario: %w", err)
	}
	start := time.Now()

	var db *persistence.DB
	if sc.Output.SQLite != "" {
		if db, err = persistence.Open(sc.Output.SQLite); err != nil {
			return fmt.Errorf("opening run database: %w", err)
		}
		defer db.Close()
	}

	var dir string
	if sc.Output.CSV || sc.Output.JSON || sc.Output.StepLog {
		if dir, err = export.RunDir(sc.Output.Dir, start); err != nil {
			return err
		}
	}

	var stepLog *export.StepLog
	if sc.Output.StepLog {
		if stepLog, err = export.CreateStepLog(filepath.Join(dir, "steps.jsonl.zst")); err != nil {
			return err
		}
		defer stepLog.Close()
	}

	var hub *api.Hub
	var srv *http.Server
	if serveAddr != "" {
		hub = api.NewHub()
		srv = api.NewServer(db, hub, serveAddr).Start()
	}

	// Exports run after each replicate so a later failure keeps earlier output.
	var exportErr error
	var summaries []stats.Summary
	var runIDs []string
	scheduler.OnStep = func(s engine.StepSummary) {
		if stepLog != nil && exportErr == nil {
			exportErr = stepLog.Write(s)
		}
		if hub != nil {
			hub.Publish(s)
		}
	}
	scheduler.OnReplicate = func(res *engine.Result) {
		sum := stats.Summarize(res)
		summaries = append(summaries, sum)
		slog.Info("replicate summary",
			"replicate", res.Replicate,
			"total_catch", humanize.CommafWithDigits(sum.TotalCatch, 2),
			"gini", fmt.Sprintf("%.3f", sum.Gini),
			"depletion", fmt.Sprintf("%.3f", sum.DepletionRatio),
		)
		if exportErr != nil {
			return
		}
		if sc.Output.CSV {
			exportErr = export.WriteCSV(dir, res)
		}
		if db != nil && exportErr == nil {
			var id string
			id, exportErr = db.SaveRun(res, scenarioYAML, start)
			runIDs = append(runIDs, id)
		}
	}

	_, runErr := scheduler.Run()
	if runErr != nil {
		return runErr
	}
	if exportErr != nil {
		return fmt.Errorf("export: %w", exportErr)
	}
	if stepLog != nil {
		if err := stepLog.Close(); err != nil {
			return fmt.Errorf("closing step log: %w", err)
		}
	}

	if sc.Output.JSON {
		doc := map[string]any{
			"seed":      sc.Seed,
			"started":   start.UTC(),
			"elapsed":   time.Since(start).String(),
			"run_ids":   runIDs,
			"summaries": summaries,
		}
		if err := export.WriteJSON(filepath.Join(dir, "summary.json"), doc); err != nil {
			return err
		}
	}

	printSummaries(out, summaries, dir, time.Since(start))

	if srv != nil {
		waitForSignal()
		return shutdown(srv)
	}
	return nil
}

func printSummaries(out io.Writer, summaries []stats.Summary, dir string, elapsed time.Duration) {
	for _, s := range summaries {
		fmt.Fprintf(out, "replicate %d (seed %d, %s): catch %s, gini %.3f, final stock %s, %s resets\n",
			s.Replicate, s.Seed, s.Method,
			humanize.CommafWithDigits(s.TotalCatch, 2), s.Gini,
			humanize.CommafWithDigits(s.FinalStock, 2), humanize.Comma(int64(s.Resets)))
	}
	if dir != "" {
		fmt.Fprintf(out, "exports written to %s\n", dir)
	}
	fmt.Fprintf(out, "finished %d replicates in %s\n", len(summaries), elapsed.Round(time.Millisecond))
}
