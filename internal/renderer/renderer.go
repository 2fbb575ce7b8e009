// Package renderer is a software frame producer. It hands out frame
// sequence numbers for applied window states, produces the frames on its own
// goroutine and reports them back on the window's runner.
package renderer

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/1broseidon/winsync/internal/configure"
	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/sequence"
	"github.com/1broseidon/winsync/internal/subsurface"
	"github.com/1broseidon/winsync/internal/windowstate"
)

// Sink receives produced frames. Methods are called on the runner.
type Sink interface {
	FrameProduced(frameID uint32, meta subsurface.FrameMetadata, overlays []subsurface.OverlayConfig)
	ProducerLost()
}

type job struct {
	seq   int64
	state windowstate.State
}

// Renderer implements configure.FrameProducer.
type Renderer struct {
	runner   sequence.Runner
	sink     Sink
	interval time.Duration
	extra    []subsurface.OverlayConfig
	logger   *slog.Logger

	mu        sync.Mutex
	nextSeq   int64
	nextFrame uint32
	nextBuf   uint32
	pending   []job
	produced  int64
	wake      chan struct{}
}

// New creates a renderer producing at most one frame per interval. extra
// planes are composited with every frame.
func New(runner sequence.Runner, sink Sink, interval time.Duration, extra []subsurface.OverlayConfig, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &Renderer{
		runner:   runner,
		sink:     sink,
		interval: interval,
		extra:    slices.Clone(extra),
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
}

func (r *Renderer) String() string { return "renderer" }

// ApplyState schedules a frame for next. Transitions that only move the
// window do not need one.
func (r *Renderer) ApplyState(prev, next windowstate.State) int64 {
	if !needsFrame(prev, next) {
		return configure.NoFrame
	}

	r.mu.Lock()
	r.nextSeq++
	seq := r.nextSeq
	r.pending = append(r.pending, job{seq: seq, state: next})
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return seq
}

func needsFrame(prev, next windowstate.State) bool {
	return prev.SizePx != next.SizePx ||
		prev.UIScale != next.UIScale ||
		prev.WindowScale != next.WindowScale ||
		prev.Kind != next.Kind ||
		prev.Tiled != next.Tiled ||
		prev.Occlusion != next.Occlusion
}

// Produced returns the newest produced sequence number.
func (r *Renderer) Produced() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.produced
}

// Serve produces pending frames, pacing them by the frame interval, until
// ctx is cancelled.
func (r *Renderer) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.wake:
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		r.Flush()
	}
}

// Flush produces one frame covering every pending state and posts it to the
// sink. Only the newest state is drawn; its sequence number covers the
// older ones.
func (r *Renderer) Flush() {
	r.mu.Lock()
	if len(r.pending) == 0 {
		r.mu.Unlock()
		return
	}
	latest := r.pending[len(r.pending)-1]
	r.pending = r.pending[:0]
	r.nextFrame++
	frameID := r.nextFrame
	overlays := r.buildOverlays(latest.state)
	r.produced = latest.seq
	r.mu.Unlock()

	meta := subsurface.FrameMetadata{
		VizSeq: latest.seq,
		SizePx: latest.state.SizePx,
		Scale:  latest.state.WindowScale,
	}
	r.logger.Debug("frame produced", "frame", frameID, "viz_seq", latest.seq, "size", latest.state.SizePx.String())
	r.runner.PostTask(func() {
		r.sink.FrameProduced(frameID, meta, overlays)
	})
}

// buildOverlays returns the frame's planes top first, the order in which a
// compositor-bound frame is submitted. Caller holds mu.
func (r *Renderer) buildOverlays(s windowstate.State) []subsurface.OverlayConfig {
	r.nextBuf++
	full := geometry.Rect{Width: s.SizePx.Width, Height: s.SizePx.Height}
	planes := []subsurface.OverlayConfig{{
		ZOrder:   0,
		Bounds:   full,
		BufferID: r.nextBuf,
		Opaque:   true,
		Opacity:  1,
		Damage:   full,
	}}
	for _, o := range r.extra {
		r.nextBuf++
		o.BufferID = r.nextBuf
		o.Bounds = geometry.ScaleToRoundedRect(o.Bounds, s.WindowScale)
		if o.Opacity == 0 {
			o.Opacity = 1
		}
		o.Damage = geometry.Rect{Width: o.Bounds.Width, Height: o.Bounds.Height}
		planes = append(planes, o)
	}
	slices.SortStableFunc(planes, func(a, b subsurface.OverlayConfig) int {
		switch {
		case a.ZOrder > b.ZOrder:
			return -1
		case a.ZOrder < b.ZOrder:
			return 1
		default:
			return 0
		}
	})
	return planes
}

// SimulateLoss drops every pending frame as if the producer had crashed and
// reports the loss on the runner. Later states are produced normally.
func (r *Renderer) SimulateLoss() {
	r.mu.Lock()
	dropped := len(r.pending)
	r.pending = r.pending[:0]
	r.mu.Unlock()

	r.logger.Warn("simulating frame producer loss", "dropped", dropped)
	r.runner.PostTask(r.sink.ProducerLost)
}

var _ configure.FrameProducer = (*Renderer)(nil)
