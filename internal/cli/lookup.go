package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/atsushimemet/fridge-predictor/internal/logger"
	"github.com/atsushimemet/fridge-predictor/internal/table"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <category> <days>",
	Short: "Resolve one probability from the configured table",
	Long:  "Resolve a probability locally, without a running server, and show which bucket matched.",
	Args:  cobra.ExactArgs(2),
	RunE:  runLookup,
}

func runLookup(cmd *cobra.Command, args []string) error {
	category := args[0]
	days, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("days must be an integer: %q", args[1])
	}
	if days < 0 {
		return fmt.Errorf("days must be non-negative: %d", days)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	src, closeSource, err := openSource(cfg, log)
	if err != nil {
		return err
	}
	defer closeSource()

	// Lookup reports load errors instead of degrading silently.
	t, err := src.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load table: %w", err)
	}

	out := cmd.OutOrStdout()
	r := t.Lookup(category, days)
	switch {
	case r.Fallback:
		fmt.Fprintf(out, "%s @ %d days: %.2f (default, category not in table)\n", category, days, r.Probability)
	case r.Matched:
		fmt.Fprintf(out, "%s @ %d days: %.2f (bucket %s)\n", category, days, r.Probability, r.Bucket.Label)
	default:
		fmt.Fprintf(out, "%s @ %d days: %.2f (no bucket matched, using last bucket %s)\n", category, days, r.Probability, r.Bucket.Label)
	}
	return nil
}

// describeTable prints each category with its buckets in start order.
func describeTable(cmd *cobra.Command, t table.Table) {
	out := cmd.OutOrStdout()
	for _, c := range t.Categories() {
		fmt.Fprintf(out, "  %s:", c)
		for _, b := range t[c] {
			fmt.Fprintf(out, " %s=%.2f", b.Label, b.Probability)
		}
		fmt.Fprintln(out)
	}
}
