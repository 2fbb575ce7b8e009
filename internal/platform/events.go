package platform

import (
	"github.com/1broseidon/winsync/internal/sequence"
	"github.com/1broseidon/winsync/internal/windowstate"
)

// Posting forwards every call to events as a task on runner, preserving
// call order.
func Posting(runner sequence.Runner, events Events) Events {
	return &postingEvents{runner: runner, events: events}
}

type postingEvents struct {
	runner sequence.Runner
	events Events
}

func (p *postingEvents) ToplevelConfigure(c ToplevelConfigure) {
	p.runner.PostTask(func() { p.events.ToplevelConfigure(c) })
}

func (p *postingEvents) SurfaceConfigure(serial int64) {
	p.runner.PostTask(func() { p.events.SurfaceConfigure(serial) })
}

func (p *postingEvents) OcclusionChanged(o windowstate.Occlusion) {
	p.runner.PostTask(func() { p.events.OcclusionChanged(o) })
}

func (p *postingEvents) OutputEntered(id uint32) {
	p.runner.PostTask(func() { p.events.OutputEntered(id) })
}

func (p *postingEvents) OutputLeft(id uint32) {
	p.runner.PostTask(func() { p.events.OutputLeft(id) })
}

func (p *postingEvents) OutputsChanged() {
	p.runner.PostTask(p.events.OutputsChanged)
}

func (p *postingEvents) CloseRequested() {
	p.runner.PostTask(p.events.CloseRequested)
}
