package ownership

// Shared is a strong reference to an object managed by a control block.
// The zero value is empty.
//
// Either both fields are set or neither is. While a Shared is non-empty
// the object it points to has not been destroyed.
type Shared[T any] struct {
	cb  *controlBlock
	ptr *T
}

// New takes ownership of ptr. When the last strong reference is released
// the object is passed to DefaultDeleter. A nil ptr yields an empty
// Shared and allocates nothing.
//
// If the control block cannot be allocated, ptr is disposed of before the
// error is returned.
func New[T any](ptr *T, opts ...Option) (Shared[T], error) {
	cfg := newConfig(opts)
	return newShared(ptr, DefaultDeleter[T](cfg.log), cfg)
}

// NewWithDeleter is New with a custom deleter, called exactly once with
// ptr when the last strong reference goes away.
func NewWithDeleter[T any](ptr *T, del func(*T), opts ...Option) (Shared[T], error) {
	cfg := newConfig(opts)
	if del == nil {
		del = DefaultDeleter[T](cfg.log)
	}
	return newShared(ptr, del, cfg)
}

func newShared[T any](ptr *T, del func(*T), cfg config) (Shared[T], error) {
	if ptr == nil {
		return Shared[T]{}, nil
	}
	b, err := newRegularBlock(ptr, del, cfg)
	if err != nil {
		del(ptr)
		return Shared[T]{}, err
	}
	return Shared[T]{cb: &b.controlBlock, ptr: ptr}, nil
}

// Alias returns a Shared that keeps owner's object alive but exposes ptr,
// typically a field of the owned object. ptr must stay valid for as long
// as the owned object does. Aliasing an empty owner, or a nil ptr, yields
// an empty Shared.
func Alias[U, T any](owner Shared[T], ptr *U) Shared[U] {
	if owner.cb == nil || ptr == nil {
		return Shared[U]{}
	}
	owner.cb.addStrong()
	return Shared[U]{cb: owner.cb, ptr: ptr}
}

// Project is Alias with the exposed address derived from owner's.
func Project[U, T any](owner Shared[T], f func(*T) *U) Shared[U] {
	if owner.cb == nil {
		return Shared[U]{}
	}
	return Alias(owner, f(owner.ptr))
}

// MoveAs transfers src's reference into a Shared exposing f(src.Get()).
// src is left empty and the strong count is unchanged.
func MoveAs[U, T any](src *Shared[T], f func(*T) *U) Shared[U] {
	s := src.Move()
	if s.cb == nil {
		return Shared[U]{}
	}
	p := f(s.ptr)
	if p == nil {
		s.Release()
		return Shared[U]{}
	}
	return Shared[U]{cb: s.cb, ptr: p}
}

// Clone returns another strong reference to the same object.
func (s Shared[T]) Clone() Shared[T] {
	if s.cb != nil {
		s.cb.addStrong()
	}
	return s
}

// Move transfers the reference out of s, leaving s empty.
func (s *Shared[T]) Move() Shared[T] {
	out := *s
	*s = Shared[T]{}
	return out
}

// Release gives up s's reference and empties s. Releasing an empty
// Shared does nothing.
func (s *Shared[T]) Release() {
	cb := s.cb
	*s = Shared[T]{}
	if cb != nil {
		cb.releaseStrong()
	}
}

// Assign makes s share other's object, releasing whatever s held.
func (s *Shared[T]) Assign(other Shared[T]) {
	tmp := other.Clone()
	Swap(s, &tmp)
	tmp.Release()
}

// AssignMove moves other's reference into s, releasing whatever s held.
func (s *Shared[T]) AssignMove(other *Shared[T]) {
	if s == other {
		return
	}
	tmp := other.Move()
	Swap(s, &tmp)
	tmp.Release()
}

// Reset empties s.
func (s *Shared[T]) Reset() {
	s.Release()
}

// ResetTo replaces s's reference with a new one owning ptr. On error s is
// unchanged and ptr has been disposed of.
func (s *Shared[T]) ResetTo(ptr *T, opts ...Option) error {
	n, err := New(ptr, opts...)
	if err != nil {
		return err
	}
	Swap(s, &n)
	n.Release()
	return nil
}

// ResetWithDeleter is ResetTo with a custom deleter.
func (s *Shared[T]) ResetWithDeleter(ptr *T, del func(*T), opts ...Option) error {
	n, err := NewWithDeleter(ptr, del, opts...)
	if err != nil {
		return err
	}
	Swap(s, &n)
	n.Release()
	return nil
}

// Get returns the exposed pointer, nil when s is empty.
func (s Shared[T]) Get() *T {
	return s.ptr
}

// Value returns a copy of the object. It panics if s is empty.
func (s Shared[T]) Value() T {
	return *s.ptr
}

// Valid reports whether s is non-empty.
func (s Shared[T]) Valid() bool {
	return s.ptr != nil
}

// UseCount returns the number of strong references, 0 when s is empty.
// Weak references are not counted.
func (s Shared[T]) UseCount() int {
	if s.cb == nil {
		return 0
	}
	return s.cb.strongCount()
}

// Weak returns a weak observer of s's object.
func (s Shared[T]) Weak() Weak[T] {
	return newWeak(s.cb, s.ptr)
}
