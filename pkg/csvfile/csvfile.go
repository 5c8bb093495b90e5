// Package csvfile implements the append-only tabular store shared by the
// collection and enrichment stages. Output files are pure logs: the first
// write creates the header, later writes only ever append rows.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// KeyColumn is the identifier column used for dedup and resume.
const KeyColumn = "corporate_number"

// Row is one record keyed by column name. Missing columns serialize blank.
type Row = map[string]string

// AppendRows appends rows to the CSV at path, creating the file and writing
// the header first when it does not exist yet. Each row is laid out in
// header order; columns absent from a row are written empty.
func AppendRows(path string, rows []Row, header []string) error {
	_, statErr := os.Stat(path)
	newFile := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if newFile {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	record := make([]string, len(header))
	for _, row := range rows {
		for i, col := range header {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

// SeenNumbers reads the identifier column of an existing CSV into a set.
// A missing file yields an empty set; rows without an identifier are
// skipped silently.
func SeenNumbers(path string) (map[string]struct{}, error) {
	seen := make(map[string]struct{})

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return seen, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	err = eachRow(f, func(row Row) error {
		if n := strings.TrimSpace(row[KeyColumn]); n != "" {
			seen[n] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seen, nil
}

// CountRows returns the number of data rows (header excluded).
// A missing file counts as zero.
func CountRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	n := -1 // header does not count
	for {
		if _, err := r.Read(); err != nil {
			if err == io.EOF {
				break
			}
			return 0, fmt.Errorf("read %s: %w", path, err)
		}
		n++
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}

// EachRow streams the CSV at path in file order, invoking fn with each data
// row keyed by the header columns. Callback errors abort the iteration.
func EachRow(path string, fn func(Row) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return eachRow(f, fn)
}

func eachRow(r io.Reader, fn func(Row) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("read header: %w", err)
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}
