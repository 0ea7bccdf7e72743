// Package conncache shares gRPC client connections between callers.
//
// Each target maps to at most one live *grpc.ClientConn. The cache only
// holds a weak reference, so a connection is closed as soon as the last
// caller puts it back, and the next Get for that target dials again.
package conncache

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"sharedref/domain/ownership"
)

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("conncache: closed")

// Dialer opens a connection to target.
type Dialer func(target string) (*grpc.ClientConn, error)

// InsecureDialer creates clients without transport security.
func InsecureDialer(opts ...grpc.DialOption) Dialer {
	all := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	return func(target string) (*grpc.ClientConn, error) {
		return grpc.NewClient(target, all...)
	}
}

// Config for a Cache. Zero fields take defaults.
type Config struct {
	Dial    Dialer
	Log     logr.Logger
	Options []ownership.Option
}

// Cache is safe for concurrent use. Every ownership operation on a
// connection it hands out must go through the cache (Clone, Put).
type Cache struct {
	mu      sync.Mutex
	dial    Dialer
	log     logr.Logger
	opts    []ownership.Option
	entries map[string]ownership.Weak[grpc.ClientConn]
	closeMu sync.Mutex
	errs    *multierror.Error
	closed  bool
}

func New(cfg Config) *Cache {
	if cfg.Dial == nil {
		cfg.Dial = InsecureDialer()
	}
	c := &Cache{
		dial:    cfg.Dial,
		log:     cfg.Log,
		entries: make(map[string]ownership.Weak[grpc.ClientConn]),
	}
	c.opts = append(append([]ownership.Option{}, cfg.Options...), ownership.WithLogger(cfg.Log))
	return c
}

// Get returns a strong reference to the connection for target, dialing
// one if no live connection exists.
func (c *Cache) Get(target string) (ownership.Shared[grpc.ClientConn], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ownership.Shared[grpc.ClientConn]{}, ErrClosed
	}

	if w, ok := c.entries[target]; ok {
		if conn := w.Lock(); conn.Valid() {
			return conn, nil
		}
		w.Release()
		delete(c.entries, target)
	}

	cc, err := c.dial(target)
	if err != nil {
		return ownership.Shared[grpc.ClientConn]{}, errors.Wrapf(err, "conncache: dial %s", target)
	}
	conn, err := ownership.NewWithDeleter(cc, c.closer(target), c.opts...)
	if err != nil {
		return ownership.Shared[grpc.ClientConn]{}, errors.Wrapf(err, "conncache: track %s", target)
	}
	c.entries[target] = conn.Weak()
	c.log.V(1).Info("dialed", "target", target)
	return conn, nil
}

func (c *Cache) closer(target string) func(*grpc.ClientConn) {
	return func(cc *grpc.ClientConn) {
		err := cc.Close()
		c.log.V(1).Info("closed", "target", target)
		if err != nil {
			c.closeMu.Lock()
			c.errs = multierror.Append(c.errs, errors.Wrapf(err, "close %s", target))
			c.closeMu.Unlock()
		}
	}
}

// Clone returns another reference to the connection held by conn.
func (c *Cache) Clone(conn ownership.Shared[grpc.ClientConn]) ownership.Shared[grpc.ClientConn] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return conn.Clone()
}

// Put releases conn and empties it.
func (c *Cache) Put(conn *ownership.Shared[grpc.ClientConn]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn.Release()
}

// Users returns the number of outstanding references for target.
func (c *Cache) Users(target string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.entries[target]
	if !ok {
		return 0
	}
	return w.UseCount()
}

// Prune forgets targets whose connections have been closed and returns
// how many were dropped.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for target, w := range c.entries {
		if w.Expired() {
			w.Release()
			delete(c.entries, target)
			n++
		}
	}
	return n
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops handing out connections and drops the cache's weak
// references. Connections still held by callers close when they are put
// back. The returned error aggregates close failures seen so far.
func (c *Cache) Close() error {
	c.mu.Lock()
	c.closed = true
	for target, w := range c.entries {
		w.Release()
		delete(c.entries, target)
	}
	c.mu.Unlock()

	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.errs.ErrorOrNil()
}
