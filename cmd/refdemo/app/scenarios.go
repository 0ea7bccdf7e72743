package app

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"

	"sharedref/domain/ownership"
	"sharedref/infra/memory"
)

type widget struct {
	name  string
	label string
}

func runScenarios(w io.Writer, objects int, opts []ownership.Option) error {
	if err := copyScenario(w, opts); err != nil {
		return err
	}
	if err := weakScenario(w, opts); err != nil {
		return err
	}
	if err := aliasScenario(w, opts); err != nil {
		return err
	}
	return poolScenario(w, objects, opts)
}

func copyScenario(w io.Writer, opts []ownership.Option) error {
	a, err := ownership.MakeValue(42, opts...)
	if err != nil {
		return errors.Wrap(err, "copy scenario")
	}
	defer a.Release()

	b := a.Clone()
	fmt.Fprintf(w, "copy: value=%d use_count=%d\n", a.Value(), a.UseCount())
	b.Release()
	fmt.Fprintf(w, "copy: after release use_count=%d\n", a.UseCount())
	return nil
}

func weakScenario(w io.Writer, opts []ownership.Option) error {
	s, err := ownership.New(&widget{name: "observed"}, opts...)
	if err != nil {
		return errors.Wrap(err, "weak scenario")
	}
	weak := s.Weak()
	defer weak.Release()

	live := weak.Lock()
	fmt.Fprintf(w, "weak: lock while owned valid=%t use_count=%d\n", live.Valid(), s.UseCount())
	live.Release()

	s.Release()
	dead := weak.Lock()
	fmt.Fprintf(w, "weak: lock after release valid=%t expired=%t\n", dead.Valid(), weak.Expired())
	return nil
}

func aliasScenario(w io.Writer, opts []ownership.Option) error {
	owner, err := ownership.MakeValue(widget{name: "outer", label: "inner"}, opts...)
	if err != nil {
		return errors.Wrap(err, "alias scenario")
	}
	label := ownership.Project(owner, func(wd *widget) *string { return &wd.label })
	owner.Release()

	fmt.Fprintf(w, "alias: label=%s use_count=%d\n", label.Value(), label.UseCount())
	label.Release()
	return nil
}

// poolScenario retires pooled widgets through the ring and shows that
// nothing is reclaimed while a reader is active.
func poolScenario(w io.Writer, objects int, opts []ownership.Option) error {
	pool := memory.NewPool(func() *widget { return &widget{} })
	ring := memory.NewRetireRing(ringSize(objects))
	rc := memory.NewReclaimer(ring, pool)
	reader := rc.Reader()

	owners := make([]ownership.Shared[widget], 0, objects)
	defer func() {
		for i := range owners {
			owners[i].Release()
		}
	}()
	for i := 0; i < objects; i++ {
		wd := pool.Get()
		wd.name = fmt.Sprintf("widget-%d", i)
		s, err := ownership.NewWithDeleter(wd, memory.Retire[widget](ring), opts...)
		if err != nil {
			return errors.Wrapf(err, "pool scenario: widget %d", i)
		}
		owners = append(owners, s)
	}

	reader.Enter()
	for i := range owners {
		owners[i].Release()
	}
	held := ring.Len()
	early := rc.Advance()
	reader.Exit()
	reclaimed := rc.Advance()

	fmt.Fprintf(w, "pool: retired=%d reclaimed_while_reading=%d reclaimed=%d\n", held, early, reclaimed)

	// Without readers to wait for, the last owner hands the widget straight
	// back to the pool.
	scratch := pool.Get()
	scratch.name = "scratch"
	s, err := ownership.NewWithDeleter(scratch, pool.Recycle(), opts...)
	if err != nil {
		return errors.Wrap(err, "pool scenario: scratch widget")
	}
	s.Release()
	fmt.Fprintf(w, "pool: recycled zeroed=%t\n", scratch.name == "")
	return nil
}

func ringSize(n int) uint64 {
	size := uint64(1)
	for size < uint64(n) {
		size <<= 1
	}
	return size
}
