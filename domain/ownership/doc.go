// Package ownership provides explicit, reference-counted ownership of heap
// objects.
//
// A Shared[T] is a strong reference: while any Shared handle to an object
// exists the object is alive. A Weak[T] observes the same object without
// keeping it alive and can be promoted back to a Shared with Lock, which
// fails once the last strong handle is gone.
//
// Both handles point at a control block holding the strong and weak
// counts. The object is destroyed when the strong count reaches zero; the
// block itself is freed when both counts are zero. A block is created
// either by wrapping an existing pointer (New, NewWithDeleter) or by
// constructing the object inside the block (Make, MakeValue), which costs
// a single allocation.
//
// Handles are plain values. Assigning one Shared to another variable does
// not share ownership; use Clone for that, Move to transfer it and Release
// to give it up. The counts are not synchronized: a handle and its clones
// must be used from one goroutine at a time.
package ownership
