package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"dashgrab/internal/download"
	"dashgrab/internal/logger"
)

const barScale = 1000

// terminalProgress draws one bar per track name.
type terminalProgress struct {
	mu   sync.Mutex
	out  io.Writer
	bars map[string]*progressbar.ProgressBar
}

func newTerminalProgress(out io.Writer) *terminalProgress {
	return &terminalProgress{out: out, bars: map[string]*progressbar.ProgressBar{}}
}

func (p *terminalProgress) report(e download.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Phase {
	case download.PhaseRetry:
		fmt.Fprintf(p.out, "\n%s: attempt %d/%d failed: %v\n", e.Name, e.Attempt, e.MaxAttempts, e.Err)
	case download.PhaseDone:
		if bar, ok := p.bars[e.Name]; ok {
			_ = bar.Finish()
			delete(p.bars, e.Name)
		}
	case download.PhaseInit:
		p.bar(e.Name, false)
	default:
		bar := p.bar(e.Name, e.Indeterminate)
		if e.Indeterminate {
			_ = bar.Set64(e.Bytes)
		} else {
			_ = bar.Set(int(e.Fraction * barScale))
		}
	}
}

func (p *terminalProgress) bar(name string, indeterminate bool) *progressbar.ProgressBar {
	if bar, ok := p.bars[name]; ok {
		return bar
	}
	opts := []progressbar.Option{
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(name),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100 * time.Millisecond),
	}
	var bar *progressbar.ProgressBar
	if indeterminate {
		bar = progressbar.NewOptions64(-1, append(opts, progressbar.OptionShowBytes(true))...)
	} else {
		bar = progressbar.NewOptions(barScale, opts...)
	}
	p.bars[name] = bar
	return bar
}

func (p *terminalProgress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, bar := range p.bars {
		_ = bar.Finish()
		delete(p.bars, name)
	}
	fmt.Fprintln(p.out)
}

// logProgress logs every tenth of a track when stderr is not a terminal.
type logProgress struct {
	mu    sync.Mutex
	log   logger.Logger
	steps map[string]int
}

func newLogProgress(log logger.Logger) *logProgress {
	return &logProgress{log: log, steps: map[string]int{}}
}

func (p *logProgress) report(e download.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Phase {
	case download.PhaseRetry:
		p.log.Warnf("%s: attempt %d/%d failed: %v", e.Name, e.Attempt, e.MaxAttempts, e.Err)
	case download.PhaseDone:
		delete(p.steps, e.Name)
	case download.PhaseSegment, download.PhaseTransfer:
		if e.Indeterminate {
			return
		}
		step := int(e.Fraction * 10)
		if step > p.steps[e.Name] {
			p.steps[e.Name] = step
			p.log.Infof("%s: %d%%", e.Name, step*10)
		}
	}
}
