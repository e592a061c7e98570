package pattern

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"sqleval/core"
)

// Key identifies a compiled pattern
type Key struct {
	Source string
	Kind   Kind
	Fold   bool
}

func (k Key) flightKey() string {
	return fmt.Sprintf("%d|%t|%s", k.Kind, k.Fold, k.Source)
}

// Cache is an arena of compiled patterns shared by concurrent evaluations.
// Entries are never modified once inserted.
type Cache struct {
	mutex          sync.RWMutex
	entries        map[Key]*Pattern
	capacity       int
	maxRegexLength int
	group          singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// NewCache creates a cache holding at most capacity patterns (0 = unbounded).
// Regular expressions longer than maxRegexLength are rejected (0 = unlimited).
func NewCache(capacity, maxRegexLength int) *Cache {
	return &Cache{
		entries:        make(map[Key]*Pattern),
		capacity:       capacity,
		maxRegexLength: maxRegexLength,
	}
}

// NewCacheFromConfig creates a cache from the pattern section of the config
func NewCacheFromConfig(cfg core.PatternConfig) *Cache {
	return NewCache(cfg.CacheSize, cfg.MaxRegexLength)
}

var (
	sharedCache     *Cache
	sharedCacheOnce sync.Once
)

// Shared returns the process-wide cache
func Shared() *Cache {
	sharedCacheOnce.Do(func() {
		sharedCache = NewCache(core.DefaultPatternCacheSize, core.DefaultMaxRegexLength)
	})
	return sharedCache
}

// Like returns the compiled LIKE/ILIKE template
func (c *Cache) Like(template string, caseInsensitive bool) *Pattern {
	p, _ := c.get(Key{Source: template, Kind: KindLike, Fold: caseInsensitive})
	return p
}

// Regex returns the compiled regular expression
func (c *Cache) Regex(expr string, caseInsensitive bool) (*Pattern, error) {
	return c.get(Key{Source: expr, Kind: KindRegex, Fold: caseInsensitive})
}

func (c *Cache) get(key Key) (*Pattern, error) {
	c.mutex.RLock()
	p, ok := c.entries[key]
	c.mutex.RUnlock()
	if ok {
		c.hits.Add(1)
		return p, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(key.flightKey(), func() (interface{}, error) {
		p, err := c.compile(key)
		if err != nil {
			return nil, err
		}
		c.mutex.Lock()
		if c.capacity == 0 || len(c.entries) < c.capacity {
			c.entries[key] = p
		}
		c.mutex.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Pattern), nil
}

func (c *Cache) compile(key Key) (*Pattern, error) {
	tracer := core.GetTracer()
	if key.Kind == KindLike {
		p := CompileLike(key.Source, key.Fold)
		tracer.Debug(core.TraceComponentPattern, "Compiled LIKE template", core.TraceContext(
			"template", key.Source,
			"case_insensitive", key.Fold,
		))
		return p, nil
	}
	if c.maxRegexLength > 0 && len(key.Source) > c.maxRegexLength {
		return nil, fmt.Errorf("regular expression of %d bytes exceeds limit of %d", len(key.Source), c.maxRegexLength)
	}
	p, err := CompileRegex(key.Source, key.Fold)
	if err != nil {
		tracer.Debug(core.TraceComponentPattern, "Regex compilation failed", core.TraceContext(
			"regex", key.Source,
			"error", err.Error(),
		))
		return nil, err
	}
	tracer.Debug(core.TraceComponentPattern, "Compiled regex", core.TraceContext(
		"regex", key.Source,
		"case_insensitive", key.Fold,
	))
	return p, nil
}

// Stats returns hit/miss counters and the number of cached patterns
func (c *Cache) Stats() CacheStats {
	c.mutex.RLock()
	n := len(c.entries)
	c.mutex.RUnlock()
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Entries: n}
}
