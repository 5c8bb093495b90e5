// Package sqlite loads the collected CSV files into a queryable SQLite
// database for ad-hoc analysis. The CSVs stay the source of truth; the
// database can be rebuilt from them at any time.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/hojin-tools/gbiz-collector/pkg/client"
	"github.com/hojin-tools/gbiz-collector/pkg/csvfile"
)

const batchSize = 5000

const schema = `
CREATE TABLE IF NOT EXISTS corporations (
  corporate_number TEXT PRIMARY KEY,
  name             TEXT
);
CREATE TABLE IF NOT EXISTS corporation_details (
  corporate_number      TEXT PRIMARY KEY,
  name                  TEXT,
  date_of_establishment TEXT,
  employee_number       TEXT,
  capital_stock         TEXT,
  prefecture_code       TEXT,
  city_code             TEXT,
  postal_code           TEXT,
  location              TEXT,
  company_url           TEXT,
  business_summary      TEXT
);`

// ImportCSV loads the list and enriched CSVs into dbPath. Missing input
// files are skipped with a log line, not an error, so the command works
// after a dump-only run.
func ImportCSV(ctx context.Context, dbPath, listPath, enrichedPath string) error {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=OFF;",
		"PRAGMA temp_store=MEMORY;",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("pragma: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	logger := log.With().Str("component", "importer").Logger()

	for _, in := range []struct {
		path  string
		table string
		cols  []string
	}{
		{listPath, "corporations", []string{"corporate_number", "name"}},
		{enrichedPath, "corporation_details", client.BasicFields},
	} {
		if in.path == "" {
			continue
		}
		if _, err := os.Stat(in.path); os.IsNotExist(err) {
			logger.Info().Str("path", in.path).Msg("Input file missing, skipping")
			continue
		}

		rows, err := importTable(ctx, db, in.path, in.table, in.cols)
		if err != nil {
			return fmt.Errorf("import %s: %w", in.path, err)
		}
		logger.Info().
			Str("path", in.path).
			Str("table", in.table).
			Int("rows", rows).
			Msg("Imported")
	}
	return nil
}

func importTable(ctx context.Context, db *sql.DB, path, table string, cols []string) (int, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	insertSQL := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, err
	}

	rows := 0
	args := make([]any, len(cols))
	err = csvfile.EachRow(path, func(row csvfile.Row) error {
		for i, col := range cols {
			args[i] = row[col]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}

		rows++
		if rows%batchSize == 0 {
			if err := tx.Commit(); err != nil {
				return err
			}
			if tx, err = db.BeginTx(ctx, nil); err != nil {
				return err
			}
			if stmt, err = tx.PrepareContext(ctx, insertSQL); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = tx.Rollback()
		return rows, err
	}

	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return rows, err
	}
	return rows, tx.Commit()
}
