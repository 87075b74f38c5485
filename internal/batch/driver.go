package batch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"upgrader/internal/logging"
	"upgrader/internal/match"
	"upgrader/internal/media"
	"upgrader/internal/prematch"
	"upgrader/internal/provider"
)

// Refiner corrects a noisy title and year before searching.
type Refiner interface {
	Refine(ctx context.Context, title string, year int) prematch.Match
}

// Options control a batch run.
type Options struct {
	Refresh     bool // re-enrich rows that already carry results
	Concurrency int  // rows searched in parallel; rows are still written in order
	MaxHeight   int  // rows above this height pass through; 0 disables the gate
}

// Stats summarizes a run.
type Stats struct {
	Rows     int
	Skipped  int
	Matched  int
	Upgrades int
	Failed   int
}

// Driver runs the refine, search, select and upgrade pipeline over rows.
type Driver struct {
	provider provider.Provider
	refiner  Refiner
	policy   match.Policy
	opts     Options
	logger   zerolog.Logger
}

// NewDriver creates a Driver. refiner may be nil.
func NewDriver(p provider.Provider, refiner Refiner, policy match.Policy, opts Options, logger zerolog.Logger) *Driver {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Driver{
		provider: p,
		refiner:  refiner,
		policy:   policy,
		opts:     opts,
		logger:   logging.Component(logger, "batch"),
	}
}

// skipReason returns why row needs no network work, or "".
func (d *Driver) skipReason(row Row, f Fields) string {
	if !d.opts.Refresh && HasEnrichment(row) {
		return "already enriched"
	}
	if d.opts.MaxHeight > 0 && f.Height > d.opts.MaxHeight {
		return "above height gate"
	}
	return ""
}

// Enrich runs the pipeline for one row. It returns an error only when ctx
// ends; a missing match is a zero Enrichment.
func (d *Driver) Enrich(ctx context.Context, f Fields) (media.Enrichment, error) {
	if f.Title == "" && f.IMDbID == "" {
		return media.Enrichment{}, nil
	}

	want, year := f.Title, f.Year
	imdbID := f.IMDbID
	if imdbID == "" && d.refiner != nil && want != "" {
		m := d.refiner.Refine(ctx, want, year)
		want, year, imdbID = m.Title, m.Year, m.IMDbID
	}

	var movies []media.Movie
	var err error
	if imdbID != "" {
		movies, err = d.provider.Search(ctx, media.NewIDQuery(imdbID))
		if err != nil {
			return media.Enrichment{}, err
		}
	}
	if len(movies) == 0 && want != "" {
		movies, err = d.provider.Search(ctx, media.NewTextQuery(want, year))
		if err != nil {
			return media.Enrichment{}, err
		}
	}

	best := match.Select(movies, want, year, imdbID)
	if best == nil {
		d.logger.Info().Str("title", want).Int("year", year).Msg("No match")
		return media.Enrichment{}, nil
	}

	e := media.Enrichment{
		Title:     best.Title,
		Year:      best.Year,
		URL:       best.URL,
		Available: best.AvailableQualities(),
	}
	label, tor := match.NextUpgrade(*best, f.Rank, d.policy)
	if tor != nil {
		e.NextQuality = label
		e.Magnet = match.Magnet(best.Title, *tor)
	}

	d.logger.Info().
		Str("source", f.Source).
		Str("match", best.Title).
		Int("year", best.Year).
		Float64("rating", best.Rating).
		Float64("current_rank", f.Rank).
		Str("next", e.NextQuality).
		Msg("Matched")
	return e, nil
}

type result struct {
	enrichment media.Enrichment
	err        error
}

// Run enriches table and writes every row through w in input order. When
// ctx is cancelled the row being committed keeps its prior state, the
// remaining rows are written unchanged and ctx's error is returned.
func (d *Driver) Run(ctx context.Context, table *Table, w *Writer) (Stats, error) {
	stats := Stats{Rows: len(table.Rows)}

	fields := make([]Fields, len(table.Rows))
	skip := make([]bool, len(table.Rows))
	results := make([]chan result, len(table.Rows))
	for i, row := range table.Rows {
		fields[i] = ParseRow(row)
		reason := d.skipReason(row, fields[i])
		if i < table.Resumed {
			reason = "recovered"
		}
		if reason != "" {
			skip[i] = true
			d.logger.Debug().Str("source", fields[i].Source).Str("reason", reason).Msg("Skipping row")
			continue
		}
		results[i] = make(chan result, 1)
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(workCtx)
	g.SetLimit(d.opts.Concurrency)
	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i := range table.Rows {
			if skip[i] {
				continue
			}
			if gctx.Err() != nil {
				return
			}
			g.Go(func() error {
				results[i] <- d.enrichSafe(gctx, fields[i])
				return nil
			})
		}
	}()

	var runErr error
	for i, row := range table.Rows {
		if skip[i] {
			stats.Skipped++
			if err := w.WriteRow(row); err != nil {
				runErr = fmt.Errorf("writing row %d: %w", i+1, err)
				break
			}
			continue
		}

		var res result
		select {
		case res = <-results[i]:
		case <-ctx.Done():
			res = result{err: ctx.Err()}
		}

		if ctx.Err() != nil {
			d.logger.Warn().Int("row", i+1).Msg("Interrupted, writing remaining rows unchanged")
			runErr = ctx.Err()
			if err := writeRemaining(w, table.Rows[i:]); err != nil {
				runErr = fmt.Errorf("writing remaining rows: %w", err)
			}
			break
		}

		out := row.Clone()
		if res.err != nil {
			stats.Failed++
			d.logger.Error().Err(res.err).Str("source", fields[i].Source).Msg("Row failed")
		}
		if !res.enrichment.IsZero() {
			stats.Matched++
		}
		if res.enrichment.NextQuality != "" {
			stats.Upgrades++
		}
		Apply(out, res.enrichment)
		if err := w.WriteRow(out); err != nil {
			runErr = fmt.Errorf("writing row %d: %w", i+1, err)
			break
		}
	}

	cancel()
	<-launched
	_ = g.Wait()

	d.logger.Info().
		Int("rows", stats.Rows).
		Int("skipped", stats.Skipped).
		Int("matched", stats.Matched).
		Int("upgrades", stats.Upgrades).
		Int("failed", stats.Failed).
		Msg("Batch finished")
	return stats, runErr
}

// enrichSafe runs Enrich, turning panics into row errors.
func (d *Driver) enrichSafe(ctx context.Context, f Fields) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{err: fmt.Errorf("panic: %v", r)}
		}
	}()
	e, err := d.Enrich(ctx, f)
	return result{enrichment: e, err: err}
}

func writeRemaining(w *Writer, rows []Row) error {
	for _, row := range rows {
		if err := w.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}
