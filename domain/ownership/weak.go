package ownership

// Weak observes an object without keeping it alive. The only way to
// reach the object is Lock. The zero value is empty.
type Weak[T any] struct {
	cb  *controlBlock
	ptr *T
}

func newWeak[T any](cb *controlBlock, ptr *T) Weak[T] {
	if cb == nil {
		return Weak[T]{}
	}
	cb.addWeak()
	return Weak[T]{cb: cb, ptr: ptr}
}

// Clone returns another weak reference to the same control block.
func (w Weak[T]) Clone() Weak[T] {
	return newWeak(w.cb, w.ptr)
}

// Move transfers the reference out of w, leaving w empty.
func (w *Weak[T]) Move() Weak[T] {
	out := *w
	*w = Weak[T]{}
	return out
}

// Lock promotes w to a strong reference. The result is empty if the
// object has already been destroyed.
func (w Weak[T]) Lock() Shared[T] {
	if w.cb == nil || w.cb.strongCount() == 0 {
		return Shared[T]{}
	}
	w.cb.addStrong()
	return Shared[T]{cb: w.cb, ptr: w.ptr}
}

// Expired reports whether Lock would return an empty Shared.
func (w Weak[T]) Expired() bool {
	return w.UseCount() == 0
}

// UseCount returns the strong count of the observed object.
func (w Weak[T]) UseCount() int {
	if w.cb == nil {
		return 0
	}
	return w.cb.strongCount()
}

// Release gives up w's reference and empties w.
func (w *Weak[T]) Release() {
	cb := w.cb
	*w = Weak[T]{}
	if cb != nil {
		cb.releaseWeak()
	}
}

// Reset empties w.
func (w *Weak[T]) Reset() {
	w.Release()
}

// Assign makes w observe other's object, releasing whatever w held.
func (w *Weak[T]) Assign(other Weak[T]) {
	tmp := other.Clone()
	SwapWeak(w, &tmp)
	tmp.Release()
}

// AssignShared makes w observe s's object.
func (w *Weak[T]) AssignShared(s Shared[T]) {
	tmp := s.Weak()
	SwapWeak(w, &tmp)
	tmp.Release()
}

// AssignMove moves other's reference into w, releasing whatever w held.
func (w *Weak[T]) AssignMove(other *Weak[T]) {
	if w == other {
		return
	}
	tmp := other.Move()
	SwapWeak(w, &tmp)
	tmp.Release()
}
