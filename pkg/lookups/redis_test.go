package lookups

import (
	"context"
	"testing"

	"github.com/streampump/pumpcore/pkg/pump"
	"github.com/streampump/pumpcore/pkg/rediscache"
)

type stubRedisConnection struct{ client *rediscache.ResilientClient }

func (s stubRedisConnection) Client() *rediscache.ResilientClient { return s.client }

func TestNewRedisCacheLookupRequiresConnection(t *testing.T) {
	app := pump.NewApplication(nil)
	if _, err := NewRedisCacheLookup(app, "l1", map[string]string{}); err == nil {
		t.Fatal("expected error when connection option is missing")
	}
}

func TestNewRedisCacheLookupRequiresApplication(t *testing.T) {
	if _, err := NewRedisCacheLookup(nil, "l1", map[string]string{"connection": "redis1"}); err == nil {
		t.Fatal("expected error when app is nil")
	}
}

func TestRedisCacheFetchOneUnregisteredConnection(t *testing.T) {
	app := pump.NewApplication(nil)
	lk, err := NewRedisCacheLookup(app, "l1", map[string]string{"connection": "redis1"})
	if err != nil {
		t.Fatalf("NewRedisCacheLookup: %v", err)
	}
	if _, ok := lk.Get(context.Background(), "k"); ok {
		t.Fatal("expected miss when the backing connection was never registered")
	}
}

func TestRedisCacheLoadUnregisteredConnectionFails(t *testing.T) {
	app := pump.NewApplication(nil)
	lk, err := NewRedisCacheLookup(app, "l1", map[string]string{"connection": "redis1"})
	if err != nil {
		t.Fatalf("NewRedisCacheLookup: %v", err)
	}
	if err := lk.Load(context.Background()); err == nil {
		t.Fatal("expected Load to fail loudly when the connection was never registered")
	}
}

func TestRedisCacheFetchOneConnectionNotOpen(t *testing.T) {
	app := pump.NewApplication(nil)
	app.RegisterConnection("redis1", stubRedisConnection{client: nil})
	lk, err := NewRedisCacheLookup(app, "l1", map[string]string{"connection": "redis1"})
	if err != nil {
		t.Fatalf("NewRedisCacheLookup: %v", err)
	}
	if _, ok := lk.Get(context.Background(), "k"); ok {
		t.Fatal("expected miss when the connection is registered but not yet opened")
	}
}

func TestRedisCacheFetchAllConnectionNotOpenFails(t *testing.T) {
	app := pump.NewApplication(nil)
	app.RegisterConnection("redis1", stubRedisConnection{client: nil})
	lk, err := NewRedisCacheLookup(app, "l1", map[string]string{"connection": "redis1"})
	if err != nil {
		t.Fatalf("NewRedisCacheLookup: %v", err)
	}
	if err := lk.Load(context.Background()); err == nil {
		t.Fatal("expected Load to fail when the registered connection has no open client")
	}
}

func TestRedisCacheWrongConnectionTypeIsTreatedAsUnresolved(t *testing.T) {
	app := pump.NewApplication(nil)
	app.RegisterConnection("redis1", struct{}{})
	lk, err := NewRedisCacheLookup(app, "l1", map[string]string{"connection": "redis1"})
	if err != nil {
		t.Fatalf("NewRedisCacheLookup: %v", err)
	}
	if _, ok := lk.Get(context.Background(), "k"); ok {
		t.Fatal("expected miss when the registered connection does not satisfy redisClient")
	}
}
