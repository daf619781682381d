package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/atsushimemet/fridge-predictor/internal/store"
	"github.com/atsushimemet/fridge-predictor/internal/table"
)

var importDryRun bool

var importCmd = &cobra.Command{
	Use:   "import <table.json>",
	Short: "Load a JSON probability table into the SQLite store",
	Long: "Replace the SQLite-backed probability table with the contents of a JSON file. " +
		"A running server with table.source=sqlite picks up the new rows on its next request.",
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate the file and print it without writing")
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var raw table.Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	t, err := table.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid table in %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	if importDryRun {
		fmt.Fprintf(out, "%s: %d categories\n", path, len(t))
		describeTable(cmd, t)
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dbPath, err := cfg.DBPath()
	if err != nil {
		return err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	rows, err := db.ImportTable(ctx, path, raw)
	if err != nil {
		return err
	}
	categories, err := db.CountCategories(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "imported %d buckets across %d categories into %s\n", rows, categories, dbPath)

	last, err := db.LastImport(ctx)
	if err != nil {
		return err
	}
	if last != nil {
		fmt.Fprintf(out, "import #%d from %s at %s\n", last.ID, last.Source,
			time.UnixMilli(last.ImportedAt).UTC().Format(time.RFC3339))
	}
	return nil
}
