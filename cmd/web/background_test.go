package main

import (
	"context"
	"testing"
	"time"
)

func waitFor(t *testing.T, done <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("%s did not return", what)
	}
}

func TestTrackingWorkerStopsOnCancelWithQueueOpen(t *testing.T) {
	app := newTestApplication(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		app.trackingWorker(ctx)
	}()
	cancel()
	waitFor(t, done, "trackingWorker")

	// A late webhook can still queue without panicking.
	app.trackingQueue <- "AWB9"
}

func TestTrackingWorkerStopsWhenQueueClosed(t *testing.T) {
	app := newTestApplication(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		app.trackingWorker(context.Background())
	}()
	close(app.trackingQueue)
	waitFor(t, done, "trackingWorker")
}

func TestResumerStopsOnCancel(t *testing.T) {
	app := newTestApplication(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		app.resumer(ctx, time.Hour)
	}()
	cancel()
	waitFor(t, done, "resumer")
}
