// Package cycle runs fetch, persist, format and notify passes.
package cycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quotealert/internal/alert"
	"quotealert/internal/notify"
	"quotealert/internal/quote"
	"quotealert/internal/watchlist"
)

// Fetcher produces one result per symbol.
type Fetcher interface {
	Fetch(ctx context.Context, tokens quote.TokenSource, symbols []watchlist.Symbol) []quote.Result
}

// Store persists quotes and alert records.
//
//go:generate mockgen -package=cycle_test -destination=mock_store_test.go -source=cycle.go Store
type Store interface {
	AppendQuotes(ctx context.Context, cycleID uuid.UUID, quotes []quote.Quote) error
	InsertAlert(ctx context.Context, rec *alert.Record) error
	UpdateAlertStatus(ctx context.Context, id uuid.UUID, status alert.Status, errText string, at time.Time) error
}

// Report summarizes one cycle.
type Report struct {
	CycleID     uuid.UUID
	StartedAt   time.Time
	Duration    time.Duration
	Symbols     int
	Fetched     int
	Failed      int
	StoreErr    error
	AlertID     uuid.UUID
	AlertStatus alert.Status
	NotifyErr   error
}

// Runner owns the per-cycle pipeline. Its fields are set once at startup.
type Runner struct {
	Fetcher  Fetcher
	Session  quote.TokenSource
	Symbols  []watchlist.Symbol
	Store    Store
	Notifier notify.Notifier
	Schedule Schedule
	// MaxMessageLen bounds the alert text; zero means alert.DefaultMaxLen.
	MaxMessageLen int
	// Location is used for the message timestamp.
	Location *time.Location
	Logger   *zap.Logger
	Clock    Clock
}

func (r *Runner) clock() Clock {
	if r.Clock == nil {
		return realClock{}
	}
	return r.Clock
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// RunOnce performs one fetch, persist, format and notify pass. Step failures
// are logged and reported; the only returned error is ctx's.
func (r *Runner) RunOnce(ctx context.Context) (Report, error) {
	if r.Fetcher == nil || r.Store == nil {
		return Report{}, errors.New("cycle: fetcher and store are required")
	}
	clk := r.clock()
	rep := Report{CycleID: uuid.New(), StartedAt: clk.Now(), Symbols: len(r.Symbols)}
	log := r.logger().With(zap.Stringer("cycle", rep.CycleID))
	log.Info("cycle started", zap.Int("symbols", len(r.Symbols)))

	results := r.Fetcher.Fetch(ctx, r.Session, r.Symbols)
	quotes := quote.Quotes(results)
	rep.Fetched = len(quotes)
	rep.Failed = len(results) - len(quotes)
	if err := ctx.Err(); err != nil {
		rep.Duration = clk.Now().Sub(rep.StartedAt)
		log.Info("cycle interrupted", zap.Error(err))
		return rep, err
	}

	if err := r.Store.AppendQuotes(ctx, rep.CycleID, quotes); err != nil {
		rep.StoreErr = err
		log.Error("storing quotes failed, continuing to notify", zap.Error(err))
	}

	at := rep.StartedAt
	if r.Location != nil {
		at = at.In(r.Location)
	}
	rec := alert.NewRecord(rep.CycleID, alert.Format(results, at, r.MaxMessageLen), clk.Now())
	rep.AlertID = rec.ID
	recorded := true
	if err := r.Store.InsertAlert(ctx, rec); err != nil {
		recorded = false
		log.Error("recording alert failed", zap.Error(err))
	}

	rep.AlertStatus, rep.NotifyErr = r.deliver(ctx, rec.Message)
	switch rep.AlertStatus {
	case alert.StatusSent:
		log.Info("alert sent")
	case alert.StatusSkipped:
		log.Info("alert skipped, notifier not configured")
	default:
		log.Error("alert delivery failed", zap.Error(rep.NotifyErr))
	}
	if recorded {
		var errText string
		if rep.NotifyErr != nil && rep.AlertStatus == alert.StatusFailed {
			errText = rep.NotifyErr.Error()
		}
		if err := r.Store.UpdateAlertStatus(ctx, rec.ID, rep.AlertStatus, errText, clk.Now()); err != nil {
			log.Error("updating alert status failed", zap.Error(err))
		}
	}

	rep.Duration = clk.Now().Sub(rep.StartedAt)
	log.Info("cycle complete",
		zap.Int("fetched", rep.Fetched),
		zap.Int("failed", rep.Failed),
		zap.String("alert", string(rep.AlertStatus)),
		zap.Duration("took", rep.Duration))
	return rep, nil
}

func (r *Runner) deliver(ctx context.Context, text string) (alert.Status, error) {
	if r.Notifier == nil {
		return alert.StatusSkipped, notify.ErrNotConfigured
	}
	err := r.Notifier.Send(ctx, text)
	switch {
	case err == nil:
		return alert.StatusSent, nil
	case errors.Is(err, notify.ErrNotConfigured):
		return alert.StatusSkipped, err
	default:
		return alert.StatusFailed, err
	}
}

// Loop runs cycles until ctx is done. Each sleep starts after the previous
// cycle returns, so cycles never overlap. Cancellation is a clean exit.
func (r *Runner) Loop(ctx context.Context) error {
	clk := r.clock()
	for {
		if _, err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		wait := r.Schedule.Next(clk.Now())
		r.logger().Info("sleeping until next cycle",
			zap.Duration("wait", wait),
			zap.Time("next", clk.Now().Add(wait)))
		if err := clk.Sleep(ctx, wait); err != nil {
			return nil
		}
	}
}
