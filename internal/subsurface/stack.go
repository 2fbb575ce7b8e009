// Package subsurface maps z-ordered overlay planes onto a pool of persistent
// overlay surfaces and packages each frame for atomic presentation.
package subsurface

import (
	"container/list"
	"errors"
	"fmt"
)

// ErrStackExhausted is returned when the factory cannot supply more surfaces.
var ErrStackExhausted = errors.New("subsurface: cannot allocate overlay surface")

// Surface is a window-owned overlay surface.
type Surface interface {
	ID() uint32
	Destroy()
}

// Factory allocates overlay surfaces parented to the window's root surface.
type Factory interface {
	CreateSubsurface() (Surface, error)
}

// Stack holds the overlay pool split into surfaces stacked above and below
// the primary content. Both lists are ordered innermost first. The pool only
// grows; surfaces move between lists but are destroyed only by Destroy.
type Stack struct {
	factory Factory
	above   *list.List
	below   *list.List
}

// NewStack creates an empty stack allocating through factory.
func NewStack(factory Factory) *Stack {
	return &Stack{
		factory: factory,
		above:   list.New(),
		below:   list.New(),
	}
}

// Size returns the number of pooled surfaces.
func (s *Stack) Size() int {
	return s.above.Len() + s.below.Len()
}

// Above returns the surfaces stacked above the primary content, innermost first.
func (s *Stack) Above() []Surface { return collect(s.above) }

// Below returns the surfaces stacked below the primary content, innermost first.
func (s *Stack) Below() []Surface { return collect(s.below) }

// Arrange grows the pool to at least above+below surfaces and re-splices the
// lists so the above list has at least above members and the below list at
// least below members. Relative order inside each list is preserved.
func (s *Stack) Arrange(above, below int) error {
	if above < 0 || below < 0 {
		return fmt.Errorf("subsurface: invalid arrangement above=%d below=%d", above, below)
	}
	for s.Size() < above+below {
		surface, err := s.factory.CreateSubsurface()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStackExhausted, err)
		}
		s.above.PushBack(surface)
	}

	switch {
	case s.above.Len() < above:
		// Everything in the below list past the first `below` members moves
		// to the outer end of the above list.
		e := s.below.Front()
		for i := 0; i < below && e != nil; i++ {
			e = e.Next()
		}
		for e != nil {
			next := e.Next()
			s.above.PushBack(s.below.Remove(e))
			e = next
		}
	case s.below.Len() < below:
		// The outermost members of the above list move to the outer end of
		// the below list, keeping their order.
		n := below - s.below.Len()
		e := s.above.Back()
		for i := 1; i < n && e != nil; i++ {
			e = e.Prev()
		}
		for e != nil {
			next := e.Next()
			s.below.PushBack(s.above.Remove(e))
			e = next
		}
	}
	return nil
}

// Destroy releases every pooled surface.
func (s *Stack) Destroy() {
	for _, l := range []*list.List{s.above, s.below} {
		for e := l.Front(); e != nil; e = e.Next() {
			e.Value.(Surface).Destroy()
		}
		l.Init()
	}
}

func collect(l *list.List) []Surface {
	out := make([]Surface, 0, l.Len())
	for e := l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(Surface))
	}
	return out
}
