package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another run holds the input file.
var ErrLocked = errors.New("input file is locked by another run")

// PartialSuffix names the file rows stream into before it replaces the output.
const PartialSuffix = ".partial"

// EnrichFile enriches the CSV at inPath into outPath. outPath may equal
// inPath for an in-place rewrite. Rows go to outPath+PartialSuffix, synced
// one by one, which is renamed over outPath at the end, including after an
// interrupt. When a crashed run left that file behind, its leading rows are
// reused as long as their input columns still match.
func EnrichFile(ctx context.Context, d *Driver, inPath, outPath string) (Stats, error) {
	if outPath == "" {
		outPath = inPath
	}

	lock := flock.New(inPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return Stats{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return Stats{}, ErrLocked
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to release input lock")
		}
		os.Remove(lock.Path())
	}()

	in, err := os.Open(inPath)
	if err != nil {
		return Stats{}, fmt.Errorf("opening input: %w", err)
	}
	table, err := ReadCSV(in)
	in.Close()
	if err != nil {
		return Stats{}, err
	}

	partialPath := outPath + PartialSuffix
	if n := resume(table, partialPath); n > 0 {
		d.logger.Info().Int("rows", n).Str("file", partialPath).Msg("Resuming interrupted run")
	}

	perm := os.FileMode(0o644)
	if fi, err := os.Stat(inPath); err == nil {
		perm = fi.Mode().Perm()
	}
	partial, err := os.OpenFile(partialPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return Stats{}, fmt.Errorf("creating partial output: %w", err)
	}
	partial.Chmod(perm)

	w, err := NewWriter(partial, WithColumns(table.Header))
	if err != nil {
		partial.Close()
		return Stats{}, err
	}

	stats, runErr := d.Run(ctx, table, w)
	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		partial.Close()
		return stats, fmt.Errorf("%w (rows written so far are kept in %s)", runErr, partialPath)
	}

	if err := partial.Close(); err != nil {
		return stats, fmt.Errorf("closing partial output: %w", err)
	}

	if err := os.Rename(partialPath, outPath); err != nil {
		return stats, fmt.Errorf("renaming output: %w", err)
	}

	return stats, runErr
}

// resume copies into table the leading rows of a partial output left by a
// crashed run and returns how many were taken. It stops at the first row
// whose input columns differ, so a stale file from another input is ignored.
// A last record without its newline was torn by the crash and is dropped.
func resume(table *Table, path string) int {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return 0
	}
	prev, err := ReadCSV(bytes.NewReader(data))
	if err != nil {
		return 0
	}
	rows := prev.Rows
	if !bytes.HasSuffix(data, []byte("\n")) && len(rows) > 0 {
		rows = rows[:len(rows)-1]
	}

	n := 0
	for n < len(rows) && n < len(table.Rows) && sameInput(table.Header, table.Rows[n], rows[n]) {
		table.Rows[n] = rows[n]
		n++
	}
	table.Resumed = n
	return n
}

// sameInput reports whether got carries want's values in every input column.
func sameInput(header []string, want, got Row) bool {
	enrichment := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		enrichment[c] = true
	}
	for _, col := range header {
		if enrichment[col] {
			continue
		}
		v, ok := got[col]
		if !ok || v != want[col] {
			return false
		}
	}
	return true
}
