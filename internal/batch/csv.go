// Package batch enriches CSV inventories of owned movies with upgrade
// recommendations, one row at a time.
package batch

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Enrichment columns, appended to the header when missing.
const (
	ColTitle     = "yts_title"
	ColYear      = "yts_year"
	ColURL       = "yts_url"
	ColAvailable = "yts_quality_available"
	ColNext      = "yts_next_quality"
	ColMagnet    = "magnet"
)

// Columns lists the enrichment columns in output order.
var Columns = []string{ColTitle, ColYear, ColURL, ColAvailable, ColNext, ColMagnet}

// Row is one CSV record keyed by header name.
type Row map[string]string

// Clone returns a copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is a parsed CSV file.
type Table struct {
	Header []string
	Rows   []Row

	// Resumed counts leading rows already committed by an earlier run.
	// They are written through without any lookup.
	Resumed int
}

// ReadCSV parses r as a headed CSV. NUL bytes are dropped and invalid UTF-8
// is replaced, so partially corrupted inventories still load. Short records
// are padded with empty values.
func ReadCSV(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	raw = bytes.ReplaceAll(raw, []byte{0}, nil)
	text := strings.ToValidUTF8(string(raw), "\uFFFD")

	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	table := &Table{Header: header, Rows: make([]Row, 0, len(records)-1)}
	for _, rec := range records[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// WithColumns returns header with the enrichment columns appended when
// missing. Existing column order is kept.
func WithColumns(header []string) []string {
	out := append([]string(nil), header...)
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	for _, c := range Columns {
		if !have[c] {
			out = append(out, c)
		}
	}
	return out
}

// SyncWriter is a destination that can be flushed to stable storage.
type SyncWriter interface {
	io.Writer
	Sync() error
}

// Writer writes rows to a SyncWriter, syncing after every row.
type Writer struct {
	dst    SyncWriter
	csv    *csv.Writer
	header []string
}

// NewWriter writes header to dst and returns a Writer for the rows.
func NewWriter(dst SyncWriter, header []string) (*Writer, error) {
	w := &Writer{dst: dst, csv: csv.NewWriter(dst), header: header}
	if err := w.write(header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	return w, nil
}

// WriteRow writes row in header order and syncs it to disk.
func (w *Writer) WriteRow(row Row) error {
	rec := make([]string, len(w.header))
	for i, col := range w.header {
		rec[i] = row[col]
	}
	return w.write(rec)
}

func (w *Writer) write(rec []string) error {
	if err := w.csv.Write(rec); err != nil {
		return err
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	return w.dst.Sync()
}
