package ownership

import (
	"unsafe"

	"github.com/cockroachdb/errors"
)

// inplaceBlock stores the object next to its counters, so object and
// bookkeeping come from one allocation. The storage outlives the object
// until the block itself is freed.
type inplaceBlock[T any] struct {
	controlBlock
	storage T
}

func (b *inplaceBlock[T]) destroyObject() {
	destroyValue(&b.storage, b.log)
	var zero T
	b.storage = zero
}

// Make allocates a control block with room for a T and runs construct on that
// storage exactly once. If construct fails or panics the allocation is given
// back and no teardown runs on the half-built object.
func Make[T any](construct func(*T) error, opts ...Option) (Shared[T], error) {
	cfg := newConfig(opts)

	var zero inplaceBlock[T]
	size := unsafe.Sizeof(zero)
	if err := cfg.alloc.Allocate(size); err != nil {
		return Shared[T]{}, errors.Wrapf(err, "ownership: allocate in-place block for %T", zero.storage)
	}

	constructed := false
	defer func() {
		if !constructed {
			cfg.alloc.Free(size)
		}
	}()

	b := &inplaceBlock[T]{}
	if construct != nil {
		if err := construct(&b.storage); err != nil {
			return Shared[T]{}, errors.Wrapf(err, "ownership: construct %T in place", b.storage)
		}
	}
	constructed = true

	b.setup(b, InPlace, size, cfg)
	return Shared[T]{cb: &b.controlBlock, ptr: &b.storage}, nil
}

// MakeValue is Make with the object initialised as a copy of v.
func MakeValue[T any](v T, opts ...Option) (Shared[T], error) {
	return Make(func(p *T) error {
		*p = v
		return nil
	}, opts...)
}
