// Package ratelimit throttles user actions with one sliding window per (action, key).
// Checks are synchronous and in-process so a rejected action never reaches the store.
package ratelimit

import (
	"fmt"
	"os"
	"sync"
	"time"

	"campushub/internal/observability"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Action names a throttled user action.
type Action string

const (
	ActionPost       Action = "post"
	ActionComment    Action = "comment"
	ActionLike       Action = "like"
	ActionMessage    Action = "message"
	ActionVote       Action = "vote"
	ActionConfession Action = "confession"
	ActionUpload     Action = "upload"
	ActionSearch     Action = "search"
	ActionStory      Action = "story"
	ActionListing    Action = "listing"
)

// Rule admits Limit actions per Window.
type Rule struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// DefaultRules returns the preset limits.
func DefaultRules() map[Action]Rule {
	return map[Action]Rule{
		ActionPost:       {Limit: 5, Window: time.Minute},
		ActionComment:    {Limit: 10, Window: time.Minute},
		ActionLike:       {Limit: 30, Window: time.Minute},
		ActionMessage:    {Limit: 20, Window: time.Minute},
		ActionVote:       {Limit: 10, Window: time.Minute},
		ActionConfession: {Limit: 3, Window: time.Minute},
		ActionUpload:     {Limit: 10, Window: time.Minute},
		ActionSearch:     {Limit: 20, Window: time.Minute},
		ActionStory:      {Limit: 5, Window: time.Minute},
		ActionListing:    {Limit: 5, Window: time.Minute},
	}
}

// LoadRules returns the defaults overlaid with the YAML file at path, if any.
// The file maps action names to {limit, window}, e.g. `post: {limit: 10, window: 1m}`.
func LoadRules(path string) (map[Action]Rule, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate limit presets: %w", err)
	}
	var overrides map[Action]Rule
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse rate limit presets: %w", err)
	}
	for action, rule := range overrides {
		if rule.Limit <= 0 || rule.Window <= 0 {
			return nil, fmt.Errorf("rate limit preset %q: limit and window must be positive", action)
		}
		rules[action] = rule
	}
	return rules, nil
}

// Clock returns the current time.
type Clock func() time.Time

// Option configures Limiters.
type Option func(*Limiters)

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(l *Limiters) { l.now = c }
}

// WithSweepInterval sets how often idle buckets are evicted.
func WithSweepInterval(d time.Duration) Option {
	return func(l *Limiters) { l.sweepEvery = d }
}

type bucketKey struct {
	action Action
	key    string
}

// bucket is a ring of the admission times inside the current window, oldest at head.
type bucket struct {
	admitted []time.Time
	head     int
	size     int
	lastSeen time.Time
}

func newBucket(limit int) *bucket {
	return &bucket{admitted: make([]time.Time, limit)}
}

// expire drops admissions at or before cutoff.
func (b *bucket) expire(cutoff time.Time) {
	for b.size > 0 && !b.admitted[b.head].After(cutoff) {
		b.head = (b.head + 1) % len(b.admitted)
		b.size--
	}
}

func (b *bucket) record(at time.Time, n int) {
	for i := 0; i < n; i++ {
		b.admitted[(b.head+b.size)%len(b.admitted)] = at
		b.size++
	}
}

// Limiters holds the buckets for every (action, key) pair seen so far.
type Limiters struct {
	mu         sync.Mutex
	rules      map[Action]Rule
	buckets    map[bucketKey]*bucket
	now        Clock
	sweepEvery time.Duration
	sweeps     *rate.Limiter
}

// New builds Limiters for rules. Actions without a rule are never throttled.
func New(rules map[Action]Rule, opts ...Option) *Limiters {
	l := &Limiters{
		rules:      rules,
		buckets:    make(map[bucketKey]*bucket),
		now:        time.Now,
		sweepEvery: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.sweeps = rate.NewLimiter(rate.Every(l.sweepEvery), 1)
	l.sweeps.AllowN(l.now(), 1)
	return l
}

// Allow reports whether key may perform action now, recording the action if so.
func (l *Limiters) Allow(action Action, key string) bool {
	return l.AllowN(action, key, 1)
}

// AllowN admits n actions at once or none of them. At most Limit actions are
// admitted in any span of Window.
func (l *Limiters) AllowN(action Action, key string, n int) bool {
	rule, ok := l.rules[action]
	if !ok || n <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	k := bucketKey{action: action, key: key}
	b, ok := l.buckets[k]
	if !ok {
		b = newBucket(rule.Limit)
		l.buckets[k] = b
	}
	b.lastSeen = now
	b.expire(now.Add(-rule.Window))

	if b.size+n > rule.Limit {
		observability.ActionRateLimited.WithLabelValues(string(action)).Inc()
		return false
	}
	b.record(now, n)
	return true
}

// Rule returns the rule configured for action.
func (l *Limiters) Rule(action Action) (Rule, bool) {
	r, ok := l.rules[action]
	return r, ok
}

// Len is the number of live buckets.
func (l *Limiters) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweepLocked drops buckets idle for at least their window. Every admission in
// such a bucket has expired.
func (l *Limiters) sweepLocked(now time.Time) {
	if !l.sweeps.AllowN(now, 1) {
		return
	}
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.rules[k.action].Window {
			delete(l.buckets, k)
		}
	}
}
