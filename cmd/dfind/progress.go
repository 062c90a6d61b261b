package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/jamesainslie/dfind/pkg/dfind/resolver"
	"github.com/jamesainslie/dfind/pkg/dfind/scanner"
)

// walkSpinner shows a running file count while the tree is walked.
type walkSpinner struct {
	mu  sync.Mutex
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newWalkSpinner(w io.Writer) *walkSpinner {
	return &walkSpinner{
		w: w,
		bar: progressbar.NewOptions64(-1,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("scanning"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(120*time.Millisecond),
		),
	}
}

// Update is a scanner.Options.OnProgress callback.
func (s *walkSpinner) Update(p scanner.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.bar.Set64(p.FilesScanned)
}

func (s *walkSpinner) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.bar.Finish()
	fmt.Fprintln(s.w)
}

// hashBar shows one bar per resolver stage, counting files.
type hashBar struct {
	mu    sync.Mutex
	w     io.Writer
	stage resolver.Stage
	done  int64
	bar   *progressbar.ProgressBar
}

func newHashBar(w io.Writer) *hashBar {
	return &hashBar{w: w}
}

// Update is a resolver.Options.OnProgress callback. Callbacks arrive from
// several workers, so Done may be seen out of order.
func (h *hashBar) Update(p resolver.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.bar == nil || p.Stage != h.stage {
		h.finishLocked()
		h.stage = p.Stage
		h.done = 0
		h.bar = progressbar.NewOptions64(p.Total,
			progressbar.OptionSetWriter(h.w),
			progressbar.OptionSetDescription(fmt.Sprintf("%-7s hashing", p.Stage)),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(120*time.Millisecond),
		)
	}
	if p.Done > h.done {
		h.done = p.Done
		_ = h.bar.Set64(p.Done)
	}
}

func (h *hashBar) Finish() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finishLocked()
}

func (h *hashBar) finishLocked() {
	if h.bar == nil {
		return
	}
	_ = h.bar.Finish()
	fmt.Fprintln(h.w)
	h.bar = nil
}
