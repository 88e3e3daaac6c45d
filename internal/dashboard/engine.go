// Package dashboard aggregates time entries into per-range summaries and
// report rows.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sadopc/tally/internal/export"
	"github.com/sadopc/tally/internal/store"
	"github.com/sadopc/tally/internal/timeutil"
)

// Source is the read side of the store used by the engine.
type Source interface {
	ListEntries(ctx context.Context, userID string, f store.EntryFilter) ([]store.TimeEntry, error)
	CountCompletedTasks(ctx context.Context, userID string, since time.Time) (int, error)
	CountActiveProjects(ctx context.Context, userID string) (int, error)
}

type Engine struct {
	src   Source
	clock func() time.Time
	loc   *time.Location
	log   logrus.FieldLogger
}

type Option func(*Engine)

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLocation sets the zone used for range boundaries and day keys.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

func New(src Source, opts ...Option) *Engine {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	e := &Engine{src: src, clock: time.Now, loc: time.Local, log: discard}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Location returns the engine's zone.
func (e *Engine) Location() *time.Location { return e.loc }

func (e *Engine) rangeStart(r timeutil.Range) time.Time {
	return timeutil.RangeStart(r, e.clock().In(e.loc))
}

// Summarize computes the dashboard for the user over r. Open entries are
// excluded.
func (e *Engine) Summarize(ctx context.Context, userID string, r timeutil.Range) (*Snapshot, error) {
	start := e.rangeStart(r)

	var (
		entries   []store.TimeEntry
		completed int
		active    int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = e.src.ListEntries(gctx, userID, store.EntryFilter{From: &start, ClosedOnly: true})
		return err
	})
	g.Go(func() error {
		var err error
		completed, err = e.src.CountCompletedTasks(gctx, userID, start)
		return err
	})
	g.Go(func() error {
		var err error
		active, err = e.src.CountActiveProjects(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("summarize %s: %w", r, err)
	}

	e.log.WithFields(logrus.Fields{
		"user":    userID,
		"range":   r,
		"entries": len(entries),
	}).Debug("dashboard computed")
	return Build(r, entries, completed, active, e.loc), nil
}

// ExportRows lists every entry, open or closed, started within r, newest
// first.
func (e *Engine) ExportRows(ctx context.Context, userID string, r timeutil.Range) ([]export.Row, error) {
	start := e.rangeStart(r)
	entries, err := e.src.ListEntries(ctx, userID, store.EntryFilter{From: &start})
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", r, err)
	}

	rows := make([]export.Row, 0, len(entries))
	for _, en := range entries {
		row := export.Row{
			EntryID:         en.ID,
			StartAt:         en.StartTime,
			EndAt:           en.EndTime,
			Project:         en.Project.Name,
			DurationSeconds: en.Duration,
			Amount:          revenueOf(en.Duration, en.Project.HourlyRate),
		}
		if en.Task != nil {
			row.Task = en.Task.Title
		}
		if en.Note != nil {
			row.Note = *en.Note
		}
		rows = append(rows, row)
	}
	return rows, nil
}
