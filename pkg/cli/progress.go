package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ProgressReporter reports progress for long-running operations.
type ProgressReporter interface {
	Start(total int64)
	Update(current int64)
	Finish()
	Error(err error)
}

// progressStep is the percentage between two printed progress lines.
const progressStep = 10

// lineProgress prints one line per progressStep percent and a summary on
// Finish. It writes plain lines so the output stays readable in logs.
type lineProgress struct {
	w    io.Writer
	unit string

	mu      sync.Mutex
	total   int64
	current int64
	printed int64 // last printed percentage
	started time.Time
}

// NewProgressReporter creates a reporter that writes to w, or to os.Stderr
// when w is nil. unit names the items counted ("entries", "vendors").
func NewProgressReporter(w io.Writer, unit string) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &lineProgress{w: w, unit: unit}
}

func (p *lineProgress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total, p.current, p.printed = total, 0, 0
	p.started = time.Now()
	fmt.Fprintf(p.w, "processing %d %s\n", total, p.unit)
}

func (p *lineProgress) Update(current int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = current
	if p.total <= 0 {
		return
	}
	pct := min(100, current*100/p.total)
	if pct < 100 && pct-p.printed >= progressStep {
		p.printed = pct - pct%progressStep
		fmt.Fprintf(p.w, "  %3d%% %d/%d %s\n", p.printed, current, p.total, p.unit)
	}
}

func (p *lineProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "done: %d/%d %s in %s\n", p.current, p.total, p.unit,
		time.Since(p.started).Round(time.Millisecond))
}

func (p *lineProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "failed after %d/%d %s: %v\n", p.current, p.total, p.unit, err)
}
