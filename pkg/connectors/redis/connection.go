// Package redis wires the teacher's rediscache.ResilientClient (formerly
// `shared/redis`, a circuit-breaker-backed go-redis/v9 client with local
// cache fallback) into the connection.Connection contract so a Service
// can own one shared Redis handle across pipelines and lookups.
package redis

import (
	"context"
	"strconv"

	"github.com/streampump/pumpcore/pkg/config"
	"github.com/streampump/pumpcore/pkg/connection"
	"github.com/streampump/pumpcore/pkg/metrics"
	"github.com/streampump/pumpcore/pkg/pump"
	"github.com/streampump/pumpcore/pkg/rediscache"
)

var defaults = map[string]string{
	"db": "0",
}

func init() {
	connection.Register("redis", NewConnection)
}

// Connection owns a rediscache.ResilientClient. Pipeline stages and
// lookups referencing this Connection's Id call Client() to reach it.
type Connection struct {
	connection.Base
	cfg     *rediscache.Config
	metrics *metrics.Registry
	client  *rediscache.ResilientClient
}

// NewConnection builds a redis Connection. Recognized options: addr,
// password, db.
func NewConnection(app *pump.Application, id string, options map[string]string) (connection.Connection, error) {
	opts := config.Merge(defaults, options)
	if opts["addr"] == "" {
		return nil, pump.NewConfigError(id, "redis connection requires addr")
	}
	db, _ := strconv.Atoi(opts["db"])
	cfg := rediscache.DefaultConfig(opts["addr"])
	cfg.Password = opts["password"]
	cfg.DB = db
	var reg *metrics.Registry
	if app != nil {
		reg = app.Metrics
	}
	return &Connection{Base: connection.NewBase(id), cfg: cfg, metrics: reg}, nil
}

// Open establishes the resilient client's connection, mirroring its
// request/success/failure/cache-hit/circuit-trip counters onto this
// Application's metrics.Registry under "<id>.redis.*".
func (c *Connection) Open(ctx context.Context) error {
	client, err := rediscache.NewResilientClientWithMetrics(c.cfg, c.metrics, c.Id())
	if err != nil {
		return pump.NewTransportError(c.Id(), err)
	}
	c.client = client
	return nil
}

// Close releases the underlying client.
func (c *Connection) Close(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Client returns the underlying resilient client, for stages that were
// constructed with this Connection's Id and need direct Get/Set/Publish
// access.
func (c *Connection) Client() *rediscache.ResilientClient { return c.client }
