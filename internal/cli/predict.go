package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/atsushimemet/fridge-predictor/internal/client"
)

var serverURL string

var predictCmd = &cobra.Command{
	Use:   "predict <category:days>...",
	Short: "Ask a running server for predictions",
	Long:  "Send one batch to POST /predict. Each argument is category:days, e.g. dairy:2 frozen:10.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPredict,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show a running server's metrics",
	RunE:  runStats,
}

func init() {
	predictCmd.Flags().StringVar(&serverURL, "url", "", "Server URL (default $PREDICTOR_URL or "+client.DefaultServerURL+")")
	statsCmd.Flags().StringVar(&serverURL, "url", "", "Server URL (default $PREDICTOR_URL or "+client.DefaultServerURL+")")
}

func parseItems(args []string) ([]client.Item, error) {
	items := make([]client.Item, 0, len(args))
	for _, a := range args {
		cat, d, ok := strings.Cut(a, ":")
		if !ok || cat == "" {
			return nil, fmt.Errorf("want category:days, got %q", a)
		}
		days, err := strconv.Atoi(d)
		if err != nil {
			return nil, fmt.Errorf("days in %q is not an integer", a)
		}
		items = append(items, client.Item{CategoryID: cat, Days: days})
	}
	return items, nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	items, err := parseItems(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	c := client.New(serverURL)
	if err := requireServer(ctx, c); err != nil {
		return err
	}
	resp, err := c.Predict(ctx, items)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, p := range resp.Predictions {
		fmt.Fprintf(out, "%-12s %4d days  %.2f\n", p.CategoryID, p.DaysSinceLastPurchase, p.Probability)
	}
	fmt.Fprintf(out, "(%.2f ms)\n", resp.ResponseTimeMS)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	c := client.New(serverURL)
	if err := requireServer(ctx, c); err != nil {
		return err
	}
	snap, err := c.Metrics(ctx)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "requests: %d\n", snap.RequestCount)
	fmt.Fprintf(out, "average response time: %.2f ms over last %d\n", snap.AverageResponseMS, snap.ResponseTimes)
	cats := make([]string, 0, len(snap.CategoryCounts))
	for cat := range snap.CategoryCounts {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	for _, cat := range cats {
		fmt.Fprintf(out, "  %s: %d\n", cat, snap.CategoryCounts[cat])
	}
	return nil
}

func requireServer(ctx context.Context, c *client.Client) error {
	if !c.Healthy(ctx) {
		return fmt.Errorf("no predictor server answering at %s", c.URL())
	}
	return nil
}
