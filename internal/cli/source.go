package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/atsushimemet/fridge-predictor/internal/config"
	"github.com/atsushimemet/fridge-predictor/internal/store"
	"github.com/atsushimemet/fridge-predictor/internal/table"
)

// openSource builds the table source named by the config. The returned
// close func releases the database when the source is SQLite.
func openSource(cfg *config.Config, log logrus.FieldLogger) (table.Source, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Table.Source {
	case config.SourceSQLite:
		path, err := cfg.DBPath()
		if err != nil {
			return nil, noop, err
		}
		db, err := store.Open(path)
		if err != nil {
			return nil, noop, fmt.Errorf("open database: %w", err)
		}
		log.WithField("db", path).Info("probability table source: sqlite")
		return db, db.Close, nil
	default:
		path, err := cfg.TablePath()
		if err != nil {
			return nil, noop, err
		}
		log.WithField("path", path).Info("probability table source: file")
		return table.NewFileSource(path), noop, nil
	}
}
