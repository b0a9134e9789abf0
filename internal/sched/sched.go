// Package sched provides the one-shot timers used for delayed replants,
// XP checks and cleanups, plus the re-entrancy guard for synthetic
// block events.
package sched

import (
	"context"
	"time"
)

// Timer is a cancellable one-shot callback. The callback re-enters the
// synchronous mutation APIs, so it must re-validate its target at fire
// time and no-op cleanly when the target is gone.
type Timer struct {
	t *time.Timer
}

// OneShot schedules fn to run once after d.
func OneShot(d time.Duration, fn func()) *Timer {
	return &Timer{t: time.AfterFunc(d, fn)}
}

// Cancel stops the timer. Safe to call multiple times and after the
// timer has already fired.
func (t *Timer) Cancel() {
	t.t.Stop()
}

type syntheticKey struct{}

// WithSynthetic marks the context as running inside a synthetic event
// evaluation. A synthetic evaluation started under an already-marked
// context must not spawn another one.
func WithSynthetic(ctx context.Context) context.Context {
	return context.WithValue(ctx, syntheticKey{}, true)
}

// IsSynthetic reports whether the context is inside a synthetic event.
func IsSynthetic(ctx context.Context) bool {
	v, _ := ctx.Value(syntheticKey{}).(bool)
	return v
}
