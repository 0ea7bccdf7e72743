package ownership

import (
	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"
)

type foo struct {
	id    int
	inner bar
}

type bar struct {
	name string
}

// tracked records teardown through the Destroyer hook.
type tracked struct {
	val       int
	destroyed *int
}

func (t *tracked) Destroy() {
	*t.destroyed++
}

type closer struct {
	closed int
	err    error
}

func (c *closer) Close() error {
	c.closed++
	return c.err
}

func countingDeleter[T any](n *int) func(*T) {
	return func(*T) { *n++ }
}

type eventLog struct {
	events []Event
}

func (l *eventLog) Observe(e Event) {
	l.events = append(l.events, e)
}

func (l *eventLog) kinds() []EventKind {
	out := make([]EventKind, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Kind)
	}
	return out
}

var errBoom = errors.New("boom")

func discard() logr.Logger { return logr.Discard() }

// selfObserver holds a weak handle to its own block and drops it during
// teardown.
type selfObserver struct {
	self      Weak[selfObserver]
	destroyed int
}

func (s *selfObserver) Destroy() {
	s.destroyed++
	s.self.Release()
}
