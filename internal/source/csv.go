package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// utf8BOM is stripped from the start of exported CSV files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVReader reads each source from <dir>/<source>.csv. A range that ends
// in ".csv" names the file explicitly instead.
type CSVReader struct {
	dir string
}

// NewCSVReader returns a reader rooted at dir.
func NewCSVReader(dir string) *CSVReader {
	return &CSVReader{dir: dir}
}

// Fetch reads and parses the source's file.
func (r *CSVReader) Fetch(ctx context.Context, src Source) (Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Source: src.ID, Err: err}
	}

	path := r.path(src)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FetchError{Source: src.ID, Err: fmt.Errorf("read %s: %w", path, err)}
	}

	grid, err := parseCSV(sanitizeUTF8(bytes.TrimPrefix(data, utf8BOM)))
	if err != nil {
		return nil, &FetchError{Source: src.ID, Err: fmt.Errorf("parse %s: %w", path, err)}
	}
	return grid, nil
}

func (r *CSVReader) path(src Source) string {
	if strings.HasSuffix(strings.ToLower(src.Range), ".csv") {
		return filepath.Join(r.dir, filepath.Base(src.Range))
	}
	return filepath.Join(r.dir, string(src.ID)+".csv")
}

func parseCSV(data []byte) (Grid, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	return Grid(records), nil
}

// sanitizeUTF8 replaces invalid byte sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
