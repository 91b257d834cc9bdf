package cache

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/agentuity/go-apiclient/eventing"
	"github.com/agentuity/go-apiclient/logger"
	"github.com/agentuity/go-apiclient/store"
)

// DefaultExpires is the TTL Exec uses when its CacheConfig leaves Expires unset.
const DefaultExpires = 5 * time.Minute

// SessionView reports the current session. *session.Manager implements it.
type SessionView interface {
	IsLoggedIn() bool
	UserID() int64
}

type config struct {
	defaultExpires time.Duration
	expiryCheck    time.Duration
	now            func() time.Time
	logger         logger.Logger
	bus            eventing.Bus
	session        SessionView
}

// Option configures a ResponseCache.
type Option func(*config)

// WithExpires sets the TTL Exec uses when its CacheConfig leaves Expires unset.
func WithExpires(d time.Duration) Option {
	return func(c *config) { c.defaultExpires = d }
}

// WithExpiryCheck runs FlushExpired at the given interval. Zero disables
// the background sweep, which is the default.
func WithExpiryCheck(d time.Duration) Option {
	return func(c *config) { c.expiryCheck = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithEvents flushes session scoped entries when a session starts for a new user.
func WithEvents(bus eventing.Bus) Option {
	return func(c *config) { c.bus = bus }
}

// WithSession checks the session at creation for a user change the cache missed.
func WithSession(s SessionView) Option {
	return func(c *config) { c.session = s }
}

type resident struct {
	value []byte
	items [][]byte
}

// ResponseCache is an expiring, persisted key-value cache.
type ResponseCache struct {
	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
	store     store.Store
	logger    logger.Logger
	sub       eventing.Subscriber

	mutex  sync.Mutex
	index  map[string]*meta
	values map[string]*resident
	userID int64
}

// New loads the cache index from st.
func New(parent context.Context, st store.Store, opts ...Option) (*ResponseCache, error) {
	cfg := config{defaultExpires: DefaultExpires, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.NewConsoleLogger(logger.LevelNone)
	}
	ctx, cancel := context.WithCancel(parent)
	c := &ResponseCache{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		store:  st,
		logger: cfg.logger.With(map[string]interface{}{"component": "cache"}),
		index:  make(map[string]*meta),
		values: make(map[string]*resident),
	}
	c.load(ctx)

	if cfg.session != nil && cfg.session.IsLoggedIn() {
		c.UserStarted(ctx, cfg.session.UserID())
	}
	if cfg.bus != nil {
		sub, err := cfg.bus.Subscribe(ctx, eventing.Inline, func(ctx context.Context, ev eventing.Event) {
			c.UserStarted(ctx, ev.UserID)
		}, eventing.SessionStarted)
		if err != nil {
			cancel()
			return nil, err
		}
		c.sub = sub
	}
	if cfg.expiryCheck > 0 {
		c.waitGroup.Add(1)
		go c.run()
	}
	return c, nil
}

func (c *ResponseCache) run() {
	defer c.waitGroup.Done()
	ticker := time.NewTicker(c.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.FlushExpired(c.ctx)
		}
	}
}

// Close stops the background sweep and the event subscription.
func (c *ResponseCache) Close() error {
	c.once.Do(func() {
		if c.sub != nil {
			c.sub.Close()
		}
		c.cancel()
		c.waitGroup.Wait()
	})
	return nil
}

// DefaultExpires returns the TTL Exec applies when none is configured.
func (c *ResponseCache) DefaultExpires() time.Duration {
	return c.cfg.defaultExpires
}

// Put stores value under key. An entry is absent from createdAt+ttl on, so
// a ttl <= 0 is already expired. Storage failures are logged and leave the
// entry in memory.
func (c *ResponseCache) Put(ctx context.Context, key string, value []byte, ttl time.Duration, sessionScoped bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.index[key] = &meta{CreatedAt: c.cfg.now(), TTL: ttl, SessionScoped: sessionScoped}
	c.values[key] = &resident{value: bytes.Clone(value)}
	c.writeBlob(ctx, key, value)
	c.saveIndex(ctx)
}

// PutCollection stores an ordered sequence of payloads under key.
func (c *ResponseCache) PutCollection(ctx context.Context, key string, values [][]byte, ttl time.Duration, sessionScoped bool) {
	items := make([][]byte, len(values))
	for i, v := range values {
		items[i] = bytes.Clone(v)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.index[key] = &meta{CreatedAt: c.cfg.now(), TTL: ttl, SessionScoped: sessionScoped, Collection: true}
	c.values[key] = &resident{items: items}
	buf, err := encodeCollection(items)
	if err != nil {
		c.logger.Error("error encoding collection %s: %s", key, err)
		return
	}
	c.writeBlob(ctx, key, buf)
	c.saveIndex(ctx)
}

// lookup returns the resident entry of key, loading it from the store
// when needed. Expired entries are evicted.
func (c *ResponseCache) lookup(ctx context.Context, key string, collection bool) *resident {
	m, ok := c.index[key]
	if !ok || m.Collection != collection {
		return nil
	}
	if m.expired(c.cfg.now()) {
		c.evict(ctx, key)
		c.saveIndex(ctx)
		return nil
	}
	if r, ok := c.values[key]; ok {
		return r
	}
	buf, err := c.store.ReadBlob(ctx, blobName(key))
	if err != nil {
		c.logger.Debug("cache blob for %s unavailable: %s", key, err)
		return nil
	}
	r := &resident{}
	if collection {
		if r.items, err = decodeCollection(buf); err != nil {
			c.logger.Warn("discarding unreadable collection %s: %s", key, err)
			return nil
		}
	} else {
		r.value = buf
	}
	c.values[key] = r
	return r
}

// Get returns the value stored by Put under key.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	r := c.lookup(ctx, key, false)
	if r == nil {
		return nil, false
	}
	return bytes.Clone(r.value), true
}

// GetCollection returns the sequence stored by PutCollection under key, in order.
func (c *ResponseCache) GetCollection(ctx context.Context, key string) ([][]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	r := c.lookup(ctx, key, true)
	if r == nil {
		return nil, false
	}
	out := make([][]byte, len(r.items))
	for i, v := range r.items {
		out[i] = bytes.Clone(v)
	}
	return out, true
}

// Remove deletes key.
func (c *ResponseCache) Remove(ctx context.Context, key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.evict(ctx, key)
	c.saveIndex(ctx)
}

// FlushAll deletes every entry.
func (c *ResponseCache) FlushAll(ctx context.Context) {
	c.flush(ctx, func(*meta) bool { return true })
}

// FlushExpired deletes every expired entry.
func (c *ResponseCache) FlushExpired(ctx context.Context) {
	now := c.cfg.now()
	c.flush(ctx, func(m *meta) bool { return m.expired(now) })
}

// FlushSessionScoped deletes every entry written with sessionScoped set.
func (c *ResponseCache) FlushSessionScoped(ctx context.Context) {
	c.flush(ctx, func(m *meta) bool { return m.SessionScoped })
}

func (c *ResponseCache) flush(ctx context.Context, match func(*meta) bool) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	var n int
	for key, m := range c.index {
		if match(m) {
			c.evict(ctx, key)
			n++
		}
	}
	if n > 0 {
		c.saveIndex(ctx)
	}
	return n
}

// Len returns the number of indexed entries, expired ones included.
func (c *ResponseCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.index)
}

// UserID returns the user the session scoped entries belong to.
func (c *ResponseCache) UserID() int64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.userID
}

func (c *ResponseCache) evict(ctx context.Context, key string) {
	delete(c.index, key)
	delete(c.values, key)
	if err := c.store.DeleteBlob(ctx, blobName(key)); err != nil {
		c.logger.Warn("error deleting cache blob for %s: %s", key, err)
	}
}
