package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"pivotboard/internal/amqp"
	"pivotboard/internal/core"
	"pivotboard/internal/log"
	"pivotboard/internal/services"
)

// Refresher rebuilds widget tables.
type Refresher interface {
	Refresh(ctx context.Context, widgetID string, version int64, filters []core.FilterClause) (*services.Snapshot, bool, error)
	ListWidgets(ctx context.Context) ([]core.Widget, error)
}

// RefreshWorker turns data-refreshed notifications into table rebuilds.
type RefreshWorker struct {
	refresher   Refresher
	logger      *log.Logger
	concurrency int
}

func NewRefreshWorker(refresher Refresher, logger *log.Logger, concurrency int) *RefreshWorker {
	if concurrency < 1 {
		concurrency = 4
	}
	return &RefreshWorker{
		refresher:   refresher,
		logger:      logger.WithComponent(log.ComponentWorker),
		concurrency: concurrency,
	}
}

// HandleRefreshMessage rebuilds the widget named in msg. Unknown widgets are
// acknowledged and dropped; other failures are returned for redelivery.
func (w *RefreshWorker) HandleRefreshMessage(ctx context.Context, msg *amqp.DataRefreshedMessage) error {
	w.logger.InfoContext(ctx, "Processing refresh message",
		log.FieldWidgetID, msg.WidgetID,
		log.FieldVersion, msg.Version)

	snap, adopted, err := w.refresher.Refresh(ctx, msg.WidgetID, msg.Version, msg.Filters)
	if errors.Is(err, services.ErrNotFound) {
		w.logger.WarnContext(ctx, "Refresh for unknown widget dropped", log.FieldWidgetID, msg.WidgetID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("refresh widget %s: %w", msg.WidgetID, err)
	}

	if !adopted {
		w.logger.InfoContext(ctx, "Refresh not adopted: version already seen or superseded by a later request",
			log.FieldWidgetID, msg.WidgetID,
			log.FieldVersion, msg.Version)
		return nil
	}
	w.logger.InfoContext(ctx, "Widget refreshed",
		log.FieldWidgetID, msg.WidgetID,
		log.FieldVersion, snap.Version,
		log.FieldRowCount, snap.Table.RowCount)
	return nil
}

// Warmup builds every stored widget once so the first dashboard request is
// served from cache. Failures are logged and counted, not returned.
func (w *RefreshWorker) Warmup(ctx context.Context) error {
	widgets, err := w.refresher.ListWidgets(ctx)
	if err != nil {
		return fmt.Errorf("list widgets for warmup: %w", err)
	}
	if len(widgets) == 0 {
		w.logger.InfoContext(ctx, "No widgets to warm up")
		return nil
	}

	var ok, failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, widget := range widgets {
		g.Go(func() error {
			if _, _, err := w.refresher.Refresh(gctx, widget.ID, 0, nil); err != nil {
				w.logger.ErrorContext(gctx, "Failed to warm up widget",
					log.FieldWidgetID, widget.ID, log.FieldError, err.Error())
				failed.Add(1)
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	w.logger.InfoContext(ctx, "Warmup completed",
		"total", len(widgets),
		"built", ok.Load(),
		"errors", failed.Load())
	return ctx.Err()
}
