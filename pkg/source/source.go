// Package source implements the Source and TriggerSource contracts: the
// long-lived per-pipeline task that produces events and hands them to
// its owning pipeline, plus the Trigger-driven cycle scheduling built on
// top of it.
package source

import (
	"context"
	"sync"

	"github.com/streampump/pumpcore/pkg/pump"
)

// Source belongs to exactly one Pipeline and runs its own long-lived
// task on the Loop handed to Start.
type Source interface {
	pump.Stage
	Start(loop *pump.Loop) error
	Stop()
	Restart(loop *pump.Loop) error
}

// Base implements the idempotent start/stop/restart bookkeeping common
// to every concrete Source, so a connector only supplies the body of
// its long-running task as a func(ctx).
type Base struct {
	id   string
	main func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBase returns a Base identified by id whose task body is main. main
// must return promptly once ctx is cancelled.
func NewBase(id string, main func(ctx context.Context)) *Base {
	return &Base{id: id, main: main}
}

func (b *Base) ID() string { return b.id }

// Start ensures the task is running; it is a no-op if already started.
func (b *Base) Start(loop *pump.Loop) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(loop.Ctx)
	b.cancel = cancel
	done := make(chan struct{})
	b.done = done
	loop.Go(func() {
		defer close(done)
		b.main(ctx)
	})
	return nil
}

// Stop requests cooperative cancellation and waits for the task to
// finish.
func (b *Base) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	done := b.done
	b.cancel = nil
	b.done = nil
	b.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
}

// Restart stops the current task, if any, and starts a fresh one.
func (b *Base) Restart(loop *pump.Loop) error {
	b.Stop()
	return b.Start(loop)
}
