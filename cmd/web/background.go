package main

import (
	"context"
	"errors"
	"time"

	"bookshop/internal/models"
)

const syncTimeout = 30 * time.Second

// trackingWorker refreshes deliveries named by carrier webhooks until the
// queue is closed or ctx is cancelled.
func (app *application) trackingWorker(ctx context.Context) {
	for {
		var awb string
		select {
		case <-ctx.Done():
			return
		case next, ok := <-app.trackingQueue:
			if !ok {
				return
			}
			awb = next
		}

		syncCtx, cancel := context.WithTimeout(ctx, syncTimeout)
		d, err := app.shipments.SyncStatus(syncCtx, awb)
		cancel()
		switch {
		case errors.Is(err, models.ErrNoRecord):
			app.infoLog.Printf("tracking update for unknown AWB %s ignored", awb)
		case err != nil:
			app.errorLog.Printf("sync %s: %v", awb, err)
		default:
			app.infoLog.Printf("delivery %s is %s", awb, d.Status)
		}
	}
}

// resumer drives unfinished shipment workflows every interval. A zero
// interval disables it.
func (app *application) resumer(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rep, err := app.shipments.Resume(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					app.errorLog.Printf("resume shipments: %v", err)
				}
				continue
			}
			if rep.Scanned > 0 {
				app.infoLog.Printf("resume shipments: scanned %d, completed %d, failed %d, skipped %d",
					rep.Scanned, rep.Completed, rep.Failed, rep.Skipped)
			}
		}
	}
}
