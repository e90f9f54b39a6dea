// Package rediscache implements a circuit-breaker-backed Redis client
// with local-cache fallback, adapted from the teacher's `shared/redis`
// package into a standalone connection.Connection building block used by
// `connectors/redis` and, through it, `lookups.NewRedisCacheLookup`.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streampump/pumpcore/pkg/metrics"
)

// ConnectionState is the client's view of its link to the Redis server.
type ConnectionState int

const (
	StateConnected ConnectionState = iota
	StateDisconnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// CircuitState is the circuit breaker's state: closed (normal), open
// (tripped, calls short-circuit), half-open (probing for recovery).
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// Config configures a ResilientClient's reconnect backoff, circuit
// breaker thresholds and local-cache fallback.
type Config struct {
	Addr     string
	Password string
	DB       int

	// Reconnect behavior.
	MaxRetries        int           // 0 = retry forever
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	// Circuit breaker thresholds.
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // consecutive successes before closing
	OpenTimeout      time.Duration // how long the circuit stays open before probing

	// Local-cache fallback, served when Redis itself is unreachable.
	EnableLocalCache  bool
	LocalCacheTTL     time.Duration
	LocalCacheMaxSize int

	// Optional observers.
	OnStateChange func(old, new ConnectionState)
	OnError       func(err error)
}

// DefaultConfig returns sane defaults for addr: infinite retry with
// exponential backoff, a 5-failure circuit breaker, and a 5-minute local
// cache capped at 1000 entries.
func DefaultConfig(addr string) *Config {
	return &Config{
		Addr:              addr,
		MaxRetries:        0,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		FailureThreshold:  5,
		SuccessThreshold:  2,
		OpenTimeout:       30 * time.Second,
		EnableLocalCache:  true,
		LocalCacheTTL:     5 * time.Minute,
		LocalCacheMaxSize: 1000,
	}
}

// ResilientClient is a go-redis/v9 client wrapped in a reconnect loop,
// circuit breaker and local-cache fallback, so a transient Redis outage
// degrades a pump Connection/Lookup instead of failing it outright.
type ResilientClient struct {
	config *Config
	client *redis.Client
	ctx    context.Context
	cancel context.CancelFunc

	connState    ConnectionState
	circuitState CircuitState
	stateMu      sync.RWMutex

	failureCount int
	successCount int
	lastFailure  time.Time
	circuitMu    sync.Mutex

	localCache   map[string]cacheEntry
	cacheMu      sync.RWMutex
	cacheCleanup *time.Ticker

	subscriptions map[string]*subscriptionInfo
	subMu         sync.RWMutex

	metrics *Metrics

	// pumpMetrics, when non-nil, mirrors the internal Metrics counters
	// onto the owning Application's metrics.Registry under the
	// "<id>.redis." prefix, so this client's health shows up alongside
	// every other pump component's counters rather than only in
	// GetMetrics's private snapshot.
	pumpMetrics *pumpCounters
}

// pumpCounters are the metrics.Registry counters a ResilientClient
// publishes to when constructed with NewResilientClientWithMetrics.
type pumpCounters struct {
	requests  *metrics.Counter
	successes *metrics.Counter
	failures  *metrics.Counter
	cacheHits *metrics.Counter
	cbTrips   *metrics.Counter
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

type subscriptionInfo struct {
	channel  string
	handler  func(msg string)
	pubsub   *redis.PubSub
	cancel   context.CancelFunc
	attempts int
}

// Metrics is a point-in-time snapshot of a ResilientClient's request/
// cache/circuit-breaker counters, returned by GetMetrics.
type Metrics struct {
	mu                  sync.RWMutex
	TotalRequests       int64
	SuccessfulRequests  int64
	FailedRequests      int64
	CacheHits           int64
	CacheMisses         int64
	ReconnectAttempts   int64
	CircuitBreakerTrips int64
	LastError           error
	LastErrorTime       time.Time
	AverageLatencyMs    float64
	latencySum          int64
	latencyCount        int64
}

// NewResilientClient builds a ResilientClient against config, dialing in
// the background and retrying with exponential backoff on failure.
func NewResilientClient(config *Config) (*ResilientClient, error) {
	return newResilientClient(config, nil)
}

// NewResilientClientWithMetrics is NewResilientClient, additionally
// mirroring the client's request/success/failure/cache-hit/circuit-trip
// counters onto registry under "<id>.redis.*", so a connectors/redis
// Connection's health is visible through the same metrics.Registry every
// other pump component reports into.
func NewResilientClientWithMetrics(config *Config, registry *metrics.Registry, id string) (*ResilientClient, error) {
	var pc *pumpCounters
	if registry != nil {
		pc = &pumpCounters{
			requests:  registry.CreateCounter(id + ".redis.requests"),
			successes: registry.CreateCounter(id + ".redis.successes"),
			failures:  registry.CreateCounter(id + ".redis.failures"),
			cacheHits: registry.CreateCounter(id + ".redis.cache_hits"),
			cbTrips:   registry.CreateCounter(id + ".redis.circuit_trips"),
		}
	}
	return newResilientClient(config, pc)
}

func newResilientClient(config *Config, pc *pumpCounters) (*ResilientClient, error) {
	ctx, cancel := context.WithCancel(context.Background())

	rc := &ResilientClient{
		config:        config,
		ctx:           ctx,
		cancel:        cancel,
		connState:     StateDisconnected,
		circuitState:  CircuitClosed,
		localCache:    make(map[string]cacheEntry),
		subscriptions: make(map[string]*subscriptionInfo),
		metrics:       &Metrics{},
		pumpMetrics:   pc,
	}

	rc.client = redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := rc.connect(); err != nil {
		// Initial dial failed; keep retrying in the background rather
		// than failing construction outright.
		go rc.reconnectLoop()
	} else {
		rc.setConnectionState(StateConnected)
	}

	if config.EnableLocalCache {
		rc.cacheCleanup = time.NewTicker(time.Minute)
		go rc.cleanupCacheLoop()
	}

	go rc.healthCheckLoop()

	return rc, nil
}

func (rc *ResilientClient) connect() error {
	ctx, cancel := context.WithTimeout(rc.ctx, 5*time.Second)
	defer cancel()

	if err := rc.client.Ping(ctx).Err(); err != nil {
		return err
	}
	return nil
}

func (rc *ResilientClient) setConnectionState(state ConnectionState) {
	rc.stateMu.Lock()
	oldState := rc.connState
	rc.connState = state
	rc.stateMu.Unlock()

	if rc.config.OnStateChange != nil && oldState != state {
		rc.config.OnStateChange(oldState, state)
	}
}

// GetConnectionState returns the client's current view of its link to
// the Redis server.
func (rc *ResilientClient) GetConnectionState() ConnectionState {
	rc.stateMu.RLock()
	defer rc.stateMu.RUnlock()
	return rc.connState
}

func (rc *ResilientClient) reconnectLoop() {
	rc.setConnectionState(StateReconnecting)

	backoff := rc.config.InitialBackoff
	attempts := 0

	for {
		select {
		case <-rc.ctx.Done():
			return
		default:
		}

		attempts++
		rc.metrics.mu.Lock()
		rc.metrics.ReconnectAttempts++
		rc.metrics.mu.Unlock()

		if err := rc.connect(); err != nil {
			if rc.config.OnError != nil {
				rc.config.OnError(fmt.Errorf("reconnect attempt %d failed: %w", attempts, err))
			}

			if rc.config.MaxRetries > 0 && attempts >= rc.config.MaxRetries {
				rc.setConnectionState(StateDisconnected)
				return
			}

			time.Sleep(backoff)
			backoff = time.Duration(float64(backoff) * rc.config.BackoffMultiplier)
			if backoff > rc.config.MaxBackoff {
				backoff = rc.config.MaxBackoff
			}
			continue
		}

		rc.setConnectionState(StateConnected)
		rc.resetCircuitBreaker()
		rc.resubscribeAll()
		return
	}
}

func (rc *ResilientClient) healthCheckLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-rc.ctx.Done():
			return
		case <-ticker.C:
			if rc.GetConnectionState() == StateConnected {
				if err := rc.connect(); err != nil {
					rc.recordFailure(err)
					if rc.GetConnectionState() == StateConnected {
						rc.setConnectionState(StateDisconnected)
						go rc.reconnectLoop()
					}
				}
			}
		}
	}
}

func (rc *ResilientClient) cleanupCacheLoop() {
	for {
		select {
		case <-rc.ctx.Done():
			return
		case <-rc.cacheCleanup.C:
			rc.cleanupExpiredCache()
		}
	}
}

func (rc *ResilientClient) cleanupExpiredCache() {
	now := time.Now()
	rc.cacheMu.Lock()
	defer rc.cacheMu.Unlock()

	for key, entry := range rc.localCache {
		if now.After(entry.expiresAt) {
			delete(rc.localCache, key)
		}
	}
}

// Circuit breaker bookkeeping.

func (rc *ResilientClient) recordFailure(err error) {
	rc.circuitMu.Lock()
	defer rc.circuitMu.Unlock()

	rc.failureCount++
	rc.successCount = 0
	rc.lastFailure = time.Now()

	rc.metrics.mu.Lock()
	rc.metrics.LastError = err
	rc.metrics.LastErrorTime = time.Now()
	rc.metrics.FailedRequests++
	rc.metrics.mu.Unlock()
	if rc.pumpMetrics != nil {
		rc.pumpMetrics.failures.Inc()
	}

	if rc.circuitState == CircuitClosed && rc.failureCount >= rc.config.FailureThreshold {
		rc.circuitState = CircuitOpen
		rc.metrics.mu.Lock()
		rc.metrics.CircuitBreakerTrips++
		rc.metrics.mu.Unlock()
		if rc.pumpMetrics != nil {
			rc.pumpMetrics.cbTrips.Inc()
		}

		if rc.config.OnError != nil {
			rc.config.OnError(fmt.Errorf("circuit breaker opened after %d failures", rc.failureCount))
		}
	}
}

func (rc *ResilientClient) recordSuccess() {
	rc.circuitMu.Lock()
	defer rc.circuitMu.Unlock()

	rc.metrics.mu.Lock()
	rc.metrics.SuccessfulRequests++
	rc.metrics.mu.Unlock()
	if rc.pumpMetrics != nil {
		rc.pumpMetrics.successes.Inc()
	}

	switch rc.circuitState {
	case CircuitHalfOpen:
		rc.successCount++
		if rc.successCount >= rc.config.SuccessThreshold {
			rc.circuitState = CircuitClosed
			rc.failureCount = 0
			rc.successCount = 0
		}
	case CircuitClosed:
		rc.failureCount = 0
	}
}

func (rc *ResilientClient) resetCircuitBreaker() {
	rc.circuitMu.Lock()
	defer rc.circuitMu.Unlock()

	rc.circuitState = CircuitClosed
	rc.failureCount = 0
	rc.successCount = 0
}

func (rc *ResilientClient) canExecute() bool {
	rc.circuitMu.Lock()
	defer rc.circuitMu.Unlock()

	switch rc.circuitState {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(rc.lastFailure) > rc.config.OpenTimeout {
			rc.circuitState = CircuitHalfOpen
			return true
		}
		return false
	case CircuitHalfOpen:
		return true
	}
	return false
}

// Public API.

// Set stores value under key, JSON-encoded, with expiration. It always
// updates the local cache fallback first, then writes through to Redis
// if the circuit breaker allows it; a write-through failure still
// returns an error even though the local cache was updated, since
// callers rely on Redis as the shared, cross-process copy.
func (rc *ResilientClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	rc.metrics.mu.Lock()
	rc.metrics.TotalRequests++
	rc.metrics.mu.Unlock()
	if rc.pumpMetrics != nil {
		rc.pumpMetrics.requests.Inc()
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if rc.config.EnableLocalCache {
		rc.setLocalCache(key, string(data), expiration)
	}

	if !rc.canExecute() {
		return fmt.Errorf("circuit breaker is open")
	}

	if rc.GetConnectionState() != StateConnected {
		return fmt.Errorf("redis not connected (state: %s)", rc.GetConnectionState())
	}

	start := time.Now()
	err = rc.client.Set(ctx, key, data, expiration).Err()
	rc.recordLatency(time.Since(start))

	if err != nil {
		rc.recordFailure(err)
		return fmt.Errorf("redis set failed (cached locally): %w", err)
	}

	rc.recordSuccess()
	return nil
}

// Get retrieves key, preferring Redis and falling back to the local
// cache when the circuit breaker is open or the connection is down.
func (rc *ResilientClient) Get(ctx context.Context, key string) (string, error) {
	rc.metrics.mu.Lock()
	rc.metrics.TotalRequests++
	rc.metrics.mu.Unlock()
	if rc.pumpMetrics != nil {
		rc.pumpMetrics.requests.Inc()
	}

	if rc.canExecute() && rc.GetConnectionState() == StateConnected {
		start := time.Now()
		result, err := rc.client.Get(ctx, key).Result()
		rc.recordLatency(time.Since(start))

		if err == nil {
			rc.recordSuccess()
			if rc.config.EnableLocalCache {
				rc.setLocalCache(key, result, rc.config.LocalCacheTTL)
			}
			return result, nil
		}

		if err != redis.Nil {
			rc.recordFailure(err)
		}
	}

	if rc.config.EnableLocalCache {
		if value, ok := rc.getLocalCache(key); ok {
			rc.metrics.mu.Lock()
			rc.metrics.CacheHits++
			rc.metrics.mu.Unlock()
			if rc.pumpMetrics != nil {
				rc.pumpMetrics.cacheHits.Inc()
			}
			return value, nil
		}
		rc.metrics.mu.Lock()
		rc.metrics.CacheMisses++
		rc.metrics.mu.Unlock()
	}

	return "", fmt.Errorf("key not found (redis unavailable, cache miss)")
}

// Del removes keys from both the local cache and Redis.
func (rc *ResilientClient) Del(ctx context.Context, keys ...string) error {
	if rc.config.EnableLocalCache {
		rc.cacheMu.Lock()
		for _, key := range keys {
			delete(rc.localCache, key)
		}
		rc.cacheMu.Unlock()
	}

	if !rc.canExecute() || rc.GetConnectionState() != StateConnected {
		return fmt.Errorf("redis not available")
	}

	err := rc.client.Del(ctx, keys...).Err()
	if err != nil {
		rc.recordFailure(err)
		return err
	}

	rc.recordSuccess()
	return nil
}

// Publish JSON-encodes message and publishes it on channel.
func (rc *ResilientClient) Publish(ctx context.Context, channel string, message interface{}) error {
	rc.metrics.mu.Lock()
	rc.metrics.TotalRequests++
	rc.metrics.mu.Unlock()
	if rc.pumpMetrics != nil {
		rc.pumpMetrics.requests.Inc()
	}

	if !rc.canExecute() || rc.GetConnectionState() != StateConnected {
		return fmt.Errorf("redis not available for publish")
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = rc.client.Publish(ctx, channel, data).Err()
	if err != nil {
		rc.recordFailure(err)
		return err
	}

	rc.recordSuccess()
	return nil
}

// Subscribe subscribes to channel, invoking handler for each message and
// automatically resubscribing across a lost connection.
func (rc *ResilientClient) Subscribe(ctx context.Context, channel string, handler func(msg string)) error {
	rc.subMu.Lock()
	defer rc.subMu.Unlock()

	if _, exists := rc.subscriptions[channel]; exists {
		return fmt.Errorf("already subscribed to channel: %s", channel)
	}

	subCtx, cancel := context.WithCancel(ctx)
	info := &subscriptionInfo{
		channel: channel,
		handler: handler,
		cancel:  cancel,
	}
	rc.subscriptions[channel] = info

	go rc.subscribeLoop(subCtx, info)

	return nil
}

func (rc *ResilientClient) subscribeLoop(ctx context.Context, info *subscriptionInfo) {
	backoff := rc.config.InitialBackoff

	for {
		select {
		case <-ctx.Done():
			return
		case <-rc.ctx.Done():
			return
		default:
		}

		for rc.GetConnectionState() != StateConnected {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}

		pubsub := rc.client.Subscribe(ctx, info.channel)
		info.pubsub = pubsub
		info.attempts++

		ch := pubsub.Channel()

	msgLoop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break msgLoop
				}
				if msg != nil {
					info.handler(msg.Payload)
					backoff = rc.config.InitialBackoff
				}
			}
		}

		pubsub.Close()

		if rc.config.OnError != nil {
			rc.config.OnError(fmt.Errorf("subscription to %s lost, reconnecting...", info.channel))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * rc.config.BackoffMultiplier)
			if backoff > rc.config.MaxBackoff {
				backoff = rc.config.MaxBackoff
			}
		}
	}
}

// Unsubscribe cancels a channel subscription started by Subscribe.
func (rc *ResilientClient) Unsubscribe(channel string) error {
	rc.subMu.Lock()
	defer rc.subMu.Unlock()

	info, exists := rc.subscriptions[channel]
	if !exists {
		return fmt.Errorf("not subscribed to channel: %s", channel)
	}

	info.cancel()
	if info.pubsub != nil {
		info.pubsub.Close()
	}
	delete(rc.subscriptions, channel)

	return nil
}

func (rc *ResilientClient) resubscribeAll() {
	rc.subMu.RLock()
	defer rc.subMu.RUnlock()

	for channel, info := range rc.subscriptions {
		if info.pubsub != nil {
			info.pubsub.Close()
		}
		// subscribeLoop reconnects on its own; this just drops the
		// stale pubsub handle so a fresh one is opened.
		_ = channel
	}
}

func (rc *ResilientClient) setLocalCache(key, value string, ttl time.Duration) {
	rc.cacheMu.Lock()
	defer rc.cacheMu.Unlock()

	if len(rc.localCache) >= rc.config.LocalCacheMaxSize {
		// Evict one entry at random to stay under the cap; this is a
		// fallback cache, not a correctness-critical one, so an exact
		// LRU policy isn't worth the bookkeeping.
		for k := range rc.localCache {
			delete(rc.localCache, k)
			break
		}
	}

	expiresAt := time.Now().Add(ttl)
	if ttl == 0 {
		expiresAt = time.Now().Add(rc.config.LocalCacheTTL)
	}

	rc.localCache[key] = cacheEntry{
		value:     value,
		expiresAt: expiresAt,
	}
}

func (rc *ResilientClient) getLocalCache(key string) (string, bool) {
	rc.cacheMu.RLock()
	defer rc.cacheMu.RUnlock()

	entry, exists := rc.localCache[key]
	if !exists {
		return "", false
	}

	if time.Now().After(entry.expiresAt) {
		return "", false
	}

	return entry.value, true
}

func (rc *ResilientClient) recordLatency(d time.Duration) {
	rc.metrics.mu.Lock()
	defer rc.metrics.mu.Unlock()

	rc.metrics.latencySum += d.Milliseconds()
	rc.metrics.latencyCount++
	if rc.metrics.latencyCount > 0 {
		rc.metrics.AverageLatencyMs = float64(rc.metrics.latencySum) / float64(rc.metrics.latencyCount)
	}
}

// GetMetrics returns a snapshot of the client's request/cache/circuit
// counters.
func (rc *ResilientClient) GetMetrics() Metrics {
	rc.metrics.mu.RLock()
	defer rc.metrics.mu.RUnlock()
	return *rc.metrics
}

// Close stops every background loop and subscription and closes the
// underlying Redis client.
func (rc *ResilientClient) Close() error {
	rc.cancel()

	if rc.cacheCleanup != nil {
		rc.cacheCleanup.Stop()
	}

	rc.subMu.Lock()
	for _, info := range rc.subscriptions {
		info.cancel()
		if info.pubsub != nil {
			info.pubsub.Close()
		}
	}
	rc.subscriptions = make(map[string]*subscriptionInfo)
	rc.subMu.Unlock()

	return rc.client.Close()
}

// IsHealthy reports whether the client is connected and the circuit
// breaker isn't tripped.
func (rc *ResilientClient) IsHealthy() bool {
	return rc.GetConnectionState() == StateConnected && rc.circuitState != CircuitOpen
}
