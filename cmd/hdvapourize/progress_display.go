package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"hdvapourize/internal/progress"
)

const progressResolution = 1000

// progressDisplay renders the aggregate batch progress as a terminal bar. It
// is inert when disabled or when the writer is not a terminal.
type progressDisplay struct {
	w       io.Writer
	enabled bool

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newProgressDisplay(w io.Writer, enabled bool) *progressDisplay {
	return &progressDisplay{w: w, enabled: enabled && shouldColorize(w)}
}

func (d *progressDisplay) Start(files int) {
	if !d.enabled || files == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bar = progressbar.NewOptions(progressResolution,
		progressbar.OptionSetWriter(d.w),
		progressbar.OptionSetDescription(fmt.Sprintf("0/%d files", files)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

func (d *progressDisplay) Update(snap progress.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bar == nil {
		return
	}
	d.bar.Describe(describeSnapshot(snap))
	_ = d.bar.Set(int(snap.Fraction * progressResolution))
}

func (d *progressDisplay) Finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bar == nil {
		return
	}
	_ = d.bar.Finish()
	d.bar = nil
}

func describeSnapshot(snap progress.Snapshot) string {
	desc := fmt.Sprintf("%d/%d files, %d running", snap.Completed, snap.Total, snap.Running)
	if snap.ETA > 0 && !snap.Terminated {
		desc += ", ETA " + formatDuration(snap.ETA)
	}
	return desc
}
