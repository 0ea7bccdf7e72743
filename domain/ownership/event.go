package ownership

// Variant identifies how a control block stores its object.
type Variant uint8

const (
	// Regular blocks wrap a separately allocated object and a deleter.
	Regular Variant = iota + 1
	// InPlace blocks hold the object inside the block's own allocation.
	InPlace
)

func (v Variant) String() string {
	switch v {
	case Regular:
		return "regular"
	case InPlace:
		return "inplace"
	default:
		return "unknown"
	}
}

// EventKind is a control-block lifecycle transition.
type EventKind uint8

const (
	BlockAllocated EventKind = iota + 1
	ObjectDestroyed
	BlockFreed
)

func (k EventKind) String() string {
	switch k {
	case BlockAllocated:
		return "block_allocated"
	case ObjectDestroyed:
		return "object_destroyed"
	case BlockFreed:
		return "block_freed"
	default:
		return "unknown"
	}
}

// Event describes one lifecycle transition of a control block.
type Event struct {
	Kind    EventKind
	Block   uint64
	Variant Variant
	Size    uintptr
}

// Observer receives lifecycle events synchronously, on the goroutine that
// caused the transition. It must not touch the handles being released.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
