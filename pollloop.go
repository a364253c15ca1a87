package tgdispatch

import (
	"context"
	"time"

	"github.com/prilive-com/tgdispatch/tg"
)

// pollLoop long-polls for updates and fans them out to the registered
// handlers. It exits when ctx is cancelled, stop closes, or the polling
// flag drops. The update offset lives only here; a fresh loop starts
// from zero and lets the server replay unconfirmed updates.
func (d *Dispatcher) pollLoop(ctx context.Context, api API, cfg Config, reg *handlerRegistry, stop <-chan struct{}) {
	d.logger.Debug("poll loop started")
	defer d.logger.Debug("poll loop stopped")

	var offset int64
	for d.polling.Load() {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		updates, err := api.GetUpdates(ctx, offset, cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil || !d.polling.Load() {
				return
			}
			d.logger.Error("fetching updates failed",
				"error", err,
				"retry_delay", cfg.RetryDelay,
			)
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-time.After(cfg.RetryDelay):
			}
			continue
		}

		for _, update := range updates {
			// Advance past every fetched update, including ones the
			// allow-list filters out, so none is delivered twice.
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			if !d.polling.Load() {
				return
			}
			d.dispatch(cfg, reg, update)
		}
	}
}

// dispatch applies the sender allow-list and invokes every handler in
// registration order. A failing or panicking handler is logged and the
// remaining handlers still run.
func (d *Dispatcher) dispatch(cfg Config, reg *handlerRegistry, update tg.Update) {
	if !cfg.allowedSender(update.Sender()) {
		return
	}
	for _, h := range reg.snapshot() {
		d.invoke(h, update)
	}
}

func (d *Dispatcher) invoke(h Handler, update tg.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked", "update_id", update.UpdateID, "panic", r)
		}
	}()
	if err := h(update); err != nil {
		d.logger.Error("handler failed", "update_id", update.UpdateID, "error", err)
	}
}
