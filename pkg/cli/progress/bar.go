// Package progress renders loader progress on a terminal.
package progress

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

// Bar is a terminal progress bar implementing mojo.ProgressSink and
// mojo.OutcomeSink. Updates after the outcome are ignored, a Bar is
// used for a single operation.
type Bar struct {
	bar  *progressbar.ProgressBar
	done bool
}

// New creates a Bar writing to w.
func New(w io.Writer) *Bar {
	return &Bar{
		bar: progressbar.NewOptions(100,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
		),
	}
}

// ProgressChanged implements mojo.ProgressSink.
func (b *Bar) ProgressChanged(fraction float64) {
	if b.done {
		return
	}
	b.bar.Set(int(fraction*100 + 0.5))
}

// StatusChanged implements mojo.ProgressSink.
func (b *Bar) StatusChanged(text string) {
	if b.done {
		return
	}
	// each phase counts from zero
	b.bar.Reset()
	b.bar.Describe(fmt.Sprintf("%-13s", text))
}

// Succeeded implements mojo.OutcomeSink.
func (b *Bar) Succeeded() {
	b.done = true
	b.bar.Finish()
}

// Failed implements mojo.OutcomeSink.
func (b *Bar) Failed(error) {
	b.done = true
	b.bar.Clear()
}
