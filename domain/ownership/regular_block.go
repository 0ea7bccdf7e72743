package ownership

import (
	"unsafe"

	"github.com/cockroachdb/errors"
)

// regularBlock owns a separately allocated object and the deleter that
// disposes of it.
type regularBlock[T any] struct {
	controlBlock
	ptr *T
	del func(*T)
}

func (b *regularBlock[T]) destroyObject() {
	ptr, del := b.ptr, b.del
	b.ptr, b.del = nil, nil
	del(ptr)
}

// newRegularBlock does not dispose of ptr on failure; the wrapping
// constructor owns that cleanup.
func newRegularBlock[T any](ptr *T, del func(*T), cfg config) (*regularBlock[T], error) {
	var zero regularBlock[T]
	size := unsafe.Sizeof(zero)
	if err := cfg.alloc.Allocate(size); err != nil {
		return nil, errors.Wrapf(err, "ownership: allocate control block for %T", ptr)
	}
	b := &regularBlock[T]{ptr: ptr, del: del}
	b.setup(b, Regular, size, cfg)
	return b, nil
}
