package sieve

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/daemon"
	"github.com/mwiater/sieve/internal/pipeline"
	"github.com/mwiater/sieve/internal/scheduler"
	"github.com/mwiater/sieve/internal/util"
	"github.com/spf13/cobra"
)

var runOnceSource string

// runCmd starts the scheduler loop and blocks until SIGINT or SIGTERM.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline on its schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		rt, err := pipeline.FromConfig(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		sched := scheduler.New(rt, cfg.ActiveSources(), cfg.Interval(), cfg.PollInterval())
		return daemon.New(cfg, sched).Run(context.Background())
	},
}

// runOnceCmd runs a single pass and prints a summary.
var runOnceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single pass over all sources (or one with --source)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		sources, err := selectSources(cfg, runOnceSource)
		if err != nil {
			return err
		}

		lock, err := daemon.AcquireLock(cfg.LockPath())
		if err != nil {
			return err
		}
		defer lock.Unlock()

		rt, err := pipeline.FromConfig(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		pass := scheduler.New(rt, sources, cfg.Interval(), cfg.PollInterval()).RunPass(cmd.Context())
		printPassSummary(cmd.OutOrStdout(), pass)
		if pass.Failures() > 0 {
			return fmt.Errorf("%d of %d source cycles failed", pass.Failures(), len(pass.Reports))
		}
		return nil
	},
}

func init() {
	runOnceCmd.Flags().StringVar(&runOnceSource, "source", "", "only run the named source")
	runCmd.AddCommand(runOnceCmd)
	rootCmd.AddCommand(runCmd)
}

func selectSources(cfg *appconfig.Config, name string) ([]appconfig.Source, error) {
	if name == "" {
		return cfg.ActiveSources(), nil
	}
	src, ok := cfg.SourceByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}
	if src.Disabled {
		return nil, fmt.Errorf("source %q is disabled", name)
	}
	return []appconfig.Source{src}, nil
}

const errorWidth = 160

func printPassSummary(out io.Writer, pass scheduler.PassSummary) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	bold.Fprintf(out, "Pass %s\n", pass.ID)
	for _, r := range pass.Reports {
		var c *color.Color
		switch r.Outcome {
		case pipeline.OutcomeUploaded:
			c = green
		case pipeline.OutcomeFailed:
			c = red
		default:
			c = yellow
		}
		c.Fprintf(out, "  %-16s %-13s", r.Source, r.Outcome)
		fmt.Fprintf(out, " items=%d generated=%d kept=%d rejected=%d uploaded=%d scores=%d\n",
			r.Items, r.Generated, r.Kept, r.Rejected, r.PromptsUploaded, r.ScoresUploaded)
		if r.Error != "" {
			red.Fprintf(out, "    error: %s\n", util.TruncateRunes(util.SingleLine(r.Error), errorWidth))
		}
		if r.ScoreError != "" {
			yellow.Fprintf(out, "    score upload: %s\n", util.TruncateRunes(util.SingleLine(r.ScoreError), errorWidth))
		}
	}
	fmt.Fprintf(out, "%d cycles, %d failed, %s\n", len(pass.Reports), pass.Failures(), pass.FinishedAt.Sub(pass.StartedAt).Round(1e6))
}
