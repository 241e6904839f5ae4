// Package importer loads animals and shelter video sources from CSV files.
package importer

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"adoptik/petfeed/internal/server/storage"
)

// Summary reports the outcome of an import.
type Summary struct {
	Total    int
	Imported int
	Errors   []string
}

// Importer handles the CSV import process
type Importer struct {
	repo   *storage.Repository
	client *http.Client
}

// NewImporter creates a new importer writing through repo.
func NewImporter(repo *storage.Repository) *Importer {
	return &Importer{repo: repo, client: &http.Client{Timeout: 30 * time.Second}}
}

// open returns the CSV content at location, which is either a local path
// or an http(s) URL.
func (i *Importer) open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		log.Debug().Str("path", location).Msg("Using local CSV file")
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("CSV file not found: %w", err)
		}
		return f, nil
	}

	log.Info().Str("url", location).Msg("Downloading CSV file")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: HTTP status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, err
	}
	log.Debug().Int("bytes", len(data)).Msg("Downloaded CSV file")
	return io.NopCloser(bytes.NewReader(data)), nil
}

// table is a parsed CSV header with case-insensitive column lookup.
type table struct {
	reader *csv.Reader
	index  map[string]int
	line   int
}

func newTable(r io.Reader, required ...string) (*table, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	log.Debug().Strs("header", header).Msg("CSV header read")

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("required column '%s' not found in CSV header", col)
		}
	}
	return &table{reader: reader, index: index, line: 1}, nil
}

// next returns the next non-empty record, or io.EOF.
func (t *table) next() ([]string, error) {
	for {
		t.line++
		record, err := t.reader.Read()
		if err != nil {
			return nil, err
		}
		if blank(record) {
			log.Debug().Int("line", t.line).Msg("Skipping empty row")
			continue
		}
		return record, nil
	}
}

// value returns the named column of record as a NullString. Missing or
// blank cells are invalid.
func (t *table) value(record []string, column string) sql.NullString {
	idx, ok := t.index[column]
	if !ok || idx >= len(record) {
		return sql.NullString{}
	}
	v := strings.TrimSpace(record[idx])
	return sql.NullString{String: v, Valid: v != ""}
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
