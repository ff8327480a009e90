package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookshop/internal/models"
	"bookshop/internal/orders"
	"bookshop/internal/redisx"
	"bookshop/internal/shipping"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const resumeBatch = 100

type ResumeReport struct {
	Scanned   int `json:"scanned"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Resume drives unfinished shipment intents forward. A create step is
// always replayed; an assign step only when an assignment was attempted and
// failed, since choosing the courier is left to the back office. Every
// intent it fails on is touched, so the next pass starts with others.
func (s *Service) Resume(ctx context.Context) (ResumeReport, error) {
	var rep ResumeReport
	intents, err := s.Store.ListResumableIntents(ctx, resumeBatch)
	if err != nil {
		return rep, err
	}

	for _, in := range intents {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		rep.Scanned++

		if !in.Resumable() {
			rep.Skipped++
			continue
		}

		err := s.resumeOne(ctx, in)
		switch {
		case err == nil:
			rep.Completed++
		case errors.Is(err, redisx.ErrLocked):
			rep.Skipped++
		default:
			rep.Failed++
			s.ErrorLog.Printf("fulfillment: resume %s (order %s, step %s): %v", in.IdempotencyKey, in.OrderID.Hex(), in.Step, err)
			s.touchFailed(ctx, in.OrderID, err)
		}
	}
	return rep, nil
}

func (s *Service) resumeOne(ctx context.Context, in *models.ShipmentIntent) error {
	release, err := s.lock(ctx, in.OrderID)
	if err != nil {
		return err
	}
	defer release()

	o, err := s.Store.GetOrder(ctx, in.OrderID)
	if errors.Is(err, models.ErrNoRecord) || (err == nil && o.Status == models.OrderCancelled) {
		return s.closeIntent(ctx, in, "order cancelled or removed")
	}
	if err != nil {
		return err
	}

	if in.Step == models.StepCreate {
		if o.ShipmentID != 0 {
			in.Step = models.StepAssign
			in.LastError = ""
			return s.Store.SaveIntent(ctx, in)
		}
		if o.Status != models.OrderConfirmed {
			return s.closeIntent(ctx, in, fmt.Sprintf("order is %s", o.Status))
		}
		return s.retry(ctx, func() error {
			_, err := s.createShipment(ctx, in.OrderID)
			return err
		})
	}

	if o.AWB == "" && !orders.CanTransition(o.Status, models.OrderShipped) {
		return s.closeIntent(ctx, in, fmt.Sprintf("order is %s", o.Status))
	}
	return s.retry(ctx, func() error {
		_, _, err := s.assignCourier(ctx, in.OrderID, in.CourierID)
		return err
	})
}

// closeIntent ends the workflow for an order that can no longer ship.
func (s *Service) closeIntent(ctx context.Context, in *models.ShipmentIntent, reason string) error {
	in.Step = models.StepDone
	in.LastError = reason
	return s.Store.SaveIntent(ctx, in)
}

// touchFailed records cause on the stored intent. It reloads first because
// the step may already have saved carrier ids the listed copy lacks.
func (s *Service) touchFailed(ctx context.Context, orderID primitive.ObjectID, cause error) {
	cur, err := s.Store.GetIntent(ctx, orderID)
	if err != nil {
		s.ErrorLog.Printf("fulfillment: reload intent for %s: %v", orderID.Hex(), err)
		return
	}
	if cur.Step == models.StepDone {
		return
	}
	s.recordFailure(ctx, cur, cause)
}

// retry calls fn until it succeeds, fails with an error that retrying
// cannot fix, or runs out of attempts. The wait grows linearly.
func (s *Service) retry(ctx context.Context, fn func() error) error {
	attempts := s.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil || !retryable(err) {
			return err
		}
		if i == attempts {
			break
		}
		t := time.NewTimer(s.Backoff * time.Duration(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrAlreadyShipped), errors.Is(err, ErrNoShipment),
		errors.Is(err, ErrNotShippable), errors.Is(err, models.ErrNoRecord),
		errors.Is(err, redisx.ErrLocked):
		return false
	}
	return shipping.Retryable(err)
}
