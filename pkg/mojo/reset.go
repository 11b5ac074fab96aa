package mojo

import (
	"context"
	"time"

	"github.com/golang/glog"
)

type resetStep struct {
	asserted bool
	hold     func(Timing) time.Duration
}

// resetPattern asserts, releases and re-asserts the reset line. The last
// hold gives the boot ROM time to get ready for the interrupt byte.
var resetPattern = []resetStep{
	{true, func(t Timing) time.Duration { return t.ResetPulse }},
	{false, func(t Timing) time.Duration { return t.ResetPulse }},
	{true, func(t Timing) time.Duration { return t.ResetSettle }},
}

// ResetDevice forces the device into its boot ROM by pulsing the reset line.
func ResetDevice(ctx context.Context, t Transport, timing Timing) error {
	glog.V(2).Info("reset device")
	timing = timing.withDefaults()
	for _, step := range resetPattern {
		if err := t.SetReset(step.asserted); err != nil {
			return ioFailure("reset", err)
		}
		if err := sleep(ctx, step.hold(timing)); err != nil {
			return cancelled("reset", err)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
