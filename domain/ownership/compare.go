package ownership

import "unsafe"

// Equal reports whether a and b expose the same address. The objects
// themselves are never compared.
func Equal[T, U any](a Shared[T], b Shared[U]) bool {
	return unsafe.Pointer(a.ptr) == unsafe.Pointer(b.ptr)
}

// NotEqual is the negation of Equal.
func NotEqual[T, U any](a Shared[T], b Shared[U]) bool {
	return !Equal(a, b)
}

// IsNil reports whether s is empty.
func IsNil[T any](s Shared[T]) bool {
	return s.ptr == nil
}

// SameOwner reports whether a and b share a control block, which is true
// for an owner and its aliases.
func SameOwner[T, U any](a Shared[T], b Shared[U]) bool {
	return a.cb == b.cb
}

// Swap exchanges the references held by a and b.
func Swap[T any](a, b *Shared[T]) {
	*a, *b = *b, *a
}

// SwapWeak exchanges the references held by a and b.
func SwapWeak[T any](a, b *Weak[T]) {
	*a, *b = *b, *a
}
