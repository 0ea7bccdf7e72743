package ownership

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sharedref/infra/memory"
)

func TestShared_ZeroValueIsEmpty(t *testing.T) {
	var s Shared[foo]
	assert.False(t, s.Valid())
	assert.Nil(t, s.Get())
	assert.Equal(t, 0, s.UseCount())
	assert.True(t, IsNil(s))

	s.Release()
	assert.Equal(t, 0, s.Clone().UseCount())
}

func TestShared_NewFromPointer(t *testing.T) {
	heap := memory.NewHeap()
	p := &foo{id: 7}

	s, err := New(p, WithAllocator(heap))
	require.NoError(t, err)
	defer s.Release()

	assert.Equal(t, 1, s.UseCount())
	assert.Same(t, p, s.Get())
	assert.Equal(t, 7, s.Value().id)
	assert.Equal(t, uint64(1), heap.Stats().Allocs)
}

func TestShared_NewNilAllocatesNothing(t *testing.T) {
	heap := memory.NewHeap()
	deleted := 0

	s, err := NewWithDeleter[foo](nil, countingDeleter[foo](&deleted), WithAllocator(heap))
	require.NoError(t, err)
	assert.False(t, s.Valid())
	assert.Equal(t, uint64(0), heap.Stats().Allocs)
	assert.Equal(t, 0, deleted)
}

func TestShared_CloneAndRelease(t *testing.T) {
	deleted := 0
	a, err := NewWithDeleter(&foo{}, countingDeleter[foo](&deleted))
	require.NoError(t, err)

	b := a.Clone()
	assert.Equal(t, 2, a.UseCount())
	assert.Equal(t, 2, b.UseCount())
	assert.True(t, Equal(a, b))

	b.Release()
	assert.False(t, b.Valid())
	assert.Equal(t, 1, a.UseCount())
	assert.Equal(t, 0, deleted)

	b.Release()
	assert.Equal(t, 1, a.UseCount(), "releasing an emptied handle is a no-op")

	a.Release()
	assert.Equal(t, 1, deleted)
}

func TestShared_DeleterRunsOnceAcrossManyOwners(t *testing.T) {
	heap := memory.NewHeap()
	deleted := 0
	root, err := NewWithDeleter(&foo{}, countingDeleter[foo](&deleted), WithAllocator(heap))
	require.NoError(t, err)

	owners := []Shared[foo]{root}
	for i := 0; i < 9; i++ {
		owners = append(owners, owners[i%len(owners)].Clone())
	}
	assert.Equal(t, 10, root.UseCount())

	for i := range owners {
		owners[i].Release()
	}
	assert.Equal(t, 1, deleted)
	assert.Equal(t, uint64(1), heap.Stats().Frees)
	assert.Equal(t, uint64(0), heap.Stats().Live())
}

func TestShared_Move(t *testing.T) {
	a, err := MakeValue(foo{id: 3})
	require.NoError(t, err)

	b := a.Move()
	assert.False(t, a.Valid())
	assert.Equal(t, 0, a.UseCount())
	assert.Equal(t, 1, b.UseCount())
	assert.Equal(t, 3, b.Value().id)
	b.Release()
}

func TestShared_ScenarioCopyThenDestroy(t *testing.T) {
	a, err := MakeValue(42)
	require.NoError(t, err)
	b := a.Clone()
	assert.Equal(t, 2, a.UseCount())

	b.Release()
	assert.Equal(t, 1, a.UseCount())
	assert.Equal(t, 42, a.Value())
	a.Release()
}

func TestShared_AllocationFailureDisposesPointer(t *testing.T) {
	budget := memory.NewBudget(1)
	deleted := 0
	p := &foo{}

	s, err := NewWithDeleter(p, func(got *foo) {
		assert.Same(t, p, got)
		deleted++
	}, WithAllocator(budget))
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrOutOfMemory)
	assert.False(t, s.Valid())
	assert.Equal(t, 1, deleted)
	assert.Equal(t, uint64(1), budget.Stats().Failures)
	assert.Equal(t, uint64(0), budget.Stats().Allocs)
}

func TestShared_AllocationFailureUsesDefaultDeleter(t *testing.T) {
	n := 0
	_, err := New(&tracked{destroyed: &n}, WithAllocator(memory.NewBudget(0)))
	require.ErrorIs(t, err, memory.ErrOutOfMemory)
	assert.Equal(t, 1, n)
}

func TestShared_Alias(t *testing.T) {
	deleted := 0
	owner, err := NewWithDeleter(&foo{inner: bar{name: "inner"}}, countingDeleter[foo](&deleted))
	require.NoError(t, err)

	member := Alias(owner, &owner.Get().inner)
	assert.Equal(t, 2, owner.UseCount())
	assert.Equal(t, 2, member.UseCount())
	assert.True(t, SameOwner(owner, member))
	assert.False(t, Equal(owner, member))

	owner.Release()
	assert.Equal(t, 0, deleted, "alias keeps the owner's object alive")
	assert.Equal(t, "inner", member.Value().name)
	assert.Equal(t, 1, member.UseCount())

	member.Release()
	assert.Equal(t, 1, deleted)
}

func TestShared_AliasOfEmptyOrNil(t *testing.T) {
	var empty Shared[foo]
	assert.False(t, Alias(empty, &bar{}).Valid())

	owner, err := MakeValue(foo{})
	require.NoError(t, err)
	defer owner.Release()
	assert.False(t, Alias[bar](owner, nil).Valid())
	assert.Equal(t, 1, owner.UseCount())
}

func TestShared_ProjectAndMoveAs(t *testing.T) {
	owner, err := MakeValue(foo{id: 1, inner: bar{name: "b"}})
	require.NoError(t, err)

	inner := Project(owner, func(f *foo) *bar { return &f.inner })
	assert.Equal(t, 2, owner.UseCount())
	assert.Same(t, &owner.Get().inner, inner.Get())

	moved := MoveAs(&owner, func(f *foo) *int { return &f.id })
	assert.False(t, owner.Valid())
	assert.Equal(t, 2, moved.UseCount())
	assert.Equal(t, 1, moved.Value())

	dropped := MoveAs(&moved, func(*int) *string { return nil })
	assert.False(t, dropped.Valid())
	assert.Equal(t, 1, inner.UseCount())
	inner.Release()
}

func TestShared_Assign(t *testing.T) {
	da, db := 0, 0
	a, err := NewWithDeleter(&foo{id: 1}, countingDeleter[foo](&da))
	require.NoError(t, err)
	b, err := NewWithDeleter(&foo{id: 2}, countingDeleter[foo](&db))
	require.NoError(t, err)

	a.Assign(b)
	assert.Equal(t, 1, da, "previous object released")
	assert.Equal(t, 2, a.Value().id)
	assert.Equal(t, 2, b.UseCount())

	a.Assign(a)
	assert.Equal(t, 2, a.UseCount())

	a.Release()
	b.Release()
	assert.Equal(t, 1, db)
}

func TestShared_AssignMove(t *testing.T) {
	da, db := 0, 0
	a, err := NewWithDeleter(&foo{id: 1}, countingDeleter[foo](&da))
	require.NoError(t, err)
	b, err := NewWithDeleter(&foo{id: 2}, countingDeleter[foo](&db))
	require.NoError(t, err)

	a.AssignMove(&b)
	assert.False(t, b.Valid())
	assert.Equal(t, 1, da)
	assert.Equal(t, 1, a.UseCount())

	a.AssignMove(&a)
	assert.Equal(t, 1, a.UseCount())

	c := a.Clone()
	a.AssignMove(&c)
	assert.False(t, c.Valid())
	assert.Equal(t, 1, a.UseCount())

	a.Release()
	assert.Equal(t, 1, db)
}

func TestShared_Reset(t *testing.T) {
	first, second := 0, 0
	s, err := NewWithDeleter(&foo{id: 1}, countingDeleter[foo](&first))
	require.NoError(t, err)

	require.NoError(t, s.ResetWithDeleter(&foo{id: 2}, countingDeleter[foo](&second)))
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, s.Value().id)

	require.NoError(t, s.ResetTo(&foo{id: 3}))
	assert.Equal(t, 1, second)
	assert.Equal(t, 3, s.Value().id)

	s.Reset()
	assert.False(t, s.Valid())
}

func TestShared_ResetFailureKeepsOldReference(t *testing.T) {
	deleted := 0
	s, err := MakeValue(foo{id: 1})
	require.NoError(t, err)
	defer s.Release()

	err = s.ResetWithDeleter(&foo{id: 2}, countingDeleter[foo](&deleted), WithAllocator(memory.NewBudget(0)))
	require.ErrorIs(t, err, memory.ErrOutOfMemory)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 1, s.Value().id)
	assert.Equal(t, 1, s.UseCount())
}

func TestShared_EqualityAndSwap(t *testing.T) {
	a, err := MakeValue(foo{id: 1})
	require.NoError(t, err)
	b, err := MakeValue(foo{id: 1})
	require.NoError(t, err)

	assert.True(t, NotEqual(a, b), "equal values at different addresses differ")
	pa, pb := a.Get(), b.Get()

	Swap(&a, &b)
	assert.Same(t, pb, a.Get())
	assert.Same(t, pa, b.Get())
	assert.Equal(t, 1, a.UseCount())

	var empty Shared[bar]
	var other Shared[foo]
	assert.True(t, Equal(empty, other))

	a.Release()
	b.Release()
}

func TestShared_DefaultDeleterClosesObject(t *testing.T) {
	c := &closer{}
	s, err := New(c)
	require.NoError(t, err)
	clone := s.Clone()

	s.Release()
	assert.Equal(t, 0, c.closed)
	clone.Release()
	assert.Equal(t, 1, c.closed)
}
