package appconfig

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

// ShowConfig prints the current configuration summary.
func ShowConfig(out io.Writer, file string, cfg *Config) {
	if file == "" {
		fmt.Fprintln(out, mutedStyle.Render("No config file loaded (using defaults)."))
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	if cfg == nil {
		fmt.Fprintln(out, "No configuration available.")
		return
	}

	fmt.Fprintln(out, headingStyle.Render("Scheduling"))
	fmt.Fprintf(out, "  Interval:        %s\n", cfg.Interval())
	fmt.Fprintf(out, "  Poll Interval:   %s\n", cfg.PollInterval())
	fmt.Fprintf(out, "  Cycle Timeout:   %s\n", durationOrNone(cfg.CycleTimeout().String(), cfg.CycleTimeout() == 0))
	fmt.Fprintf(out, "  Data Dir:        %s\n", cfg.DataPath())
	fmt.Fprintf(out, "  Marker Store:    %s\n", cfg.MarkerBackend())
	fmt.Fprintf(out, "  Debug:           %v\n", cfg.Debug)
	fmt.Fprintln(out)

	fmt.Fprintln(out, headingStyle.Render("Evaluation"))
	fmt.Fprintf(out, "  Testing Enabled: %v\n", cfg.Testing())
	fmt.Fprintf(out, "  Concurrency:     %d\n", cfg.WorkerLimit())
	fmt.Fprintf(out, "  Request Timeout: %s\n", cfg.RequestTimeout())
	models := make([]string, 0, len(cfg.TestModels))
	for _, m := range cfg.TestModels {
		models = append(models, m.String())
	}
	fmt.Fprintf(out, "  Test Models:     %s\n", strings.Join(models, ", "))
	judge := "(none)"
	if !cfg.Judge.IsZero() {
		judge = cfg.Judge.String()
	}
	fmt.Fprintf(out, "  Judge:           %s\n", judge)
	fmt.Fprintln(out)

	fmt.Fprintln(out, headingStyle.Render("Registry"))
	if strings.TrimSpace(cfg.Registry.URL) != "" {
		fmt.Fprintf(out, "  URL:             %s\n", cfg.Registry.URL)
	} else {
		fmt.Fprintf(out, "  Local Dir:       %s\n", cfg.RegistryDir())
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, headingStyle.Render("Sources"))
	for _, s := range cfg.Sources {
		state := ""
		if s.Disabled {
			state = mutedStyle.Render(" (disabled)")
		}
		fmt.Fprintf(out, "  %s%s: %s -> %s, prompt-set %d\n", s.Name, state, s.Collector, s.Generator, s.BenchmarkID)
	}
}

func durationOrNone(v string, none bool) string {
	if none {
		return "(none)"
	}
	return v
}
