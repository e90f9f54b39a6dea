// Package mongo adapts the teacher's connection-setup patterns
// (`pkg/provisioner/mongodb_provisioner.go`) into a processor.Sink that
// bulk-inserts events via `go.mongodb.org/mongo-driver`.
package mongo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/streampump/pumpcore/pkg/config"
	"github.com/streampump/pumpcore/pkg/processor"
	"github.com/streampump/pumpcore/pkg/pump"
)

var defaults = map[string]string{
	"batch_size":   "100",
	"flush_ms":     "1000",
	"connect_time": "10s",
}

func init() {
	processor.Register("mongo", NewSink)
}

// Sink buffers events and flushes them as a single InsertMany call from
// Write, once batch_size is reached or flush_ms has elapsed since the
// last flush. The check runs only inside Write; there is no timer, so a
// partly filled buffer stays buffered until the next Write.
type Sink struct {
	id         string
	collection *mongo.Collection

	mu      sync.Mutex
	buf     []any
	batch   int
	lastFlu time.Time
	flushMs time.Duration
}

// NewSink builds a MongoDB Sink. Recognized options: uri, database,
// collection, batch_size, flush_ms.
func NewSink(app *pump.Application, id string, options_ map[string]string) (pump.Stage, error) {
	opts := config.Merge(defaults, options_)
	if opts["uri"] == "" || opts["database"] == "" || opts["collection"] == "" {
		return nil, pump.NewConfigError(id, "mongo sink requires uri, database and collection")
	}
	connectTimeout, err := time.ParseDuration(opts["connect_time"])
	if err != nil {
		return nil, pump.NewConfigError(id, fmt.Sprintf("invalid connect_time: %v", err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts["uri"]))
	if err != nil {
		return nil, pump.NewConfigError(id, fmt.Sprintf("connect: %v", err))
	}

	var batch int
	fmt.Sscanf(opts["batch_size"], "%d", &batch)
	var flushMs int
	fmt.Sscanf(opts["flush_ms"], "%d", &flushMs)

	return &Sink{
		id:         id,
		collection: client.Database(opts["database"]).Collection(opts["collection"]),
		batch:      batch,
		flushMs:    time.Duration(flushMs) * time.Millisecond,
		lastFlu:    time.Now(),
	}, nil
}

func (s *Sink) ID() string { return s.id }

func (s *Sink) Write(ctx pump.Context, event any) error {
	s.mu.Lock()
	s.buf = append(s.buf, event)
	due := len(s.buf) >= s.batch || time.Since(s.lastFlu) >= s.flushMs
	var toFlush []any
	if due {
		toFlush = s.buf
		s.buf = nil
		s.lastFlu = time.Now()
	}
	s.mu.Unlock()

	if len(toFlush) == 0 {
		return nil
	}
	docs := make([]interface{}, len(toFlush))
	for i, e := range toFlush {
		docs[i] = e
	}
	if _, err := s.collection.InsertMany(context.Background(), docs); err != nil {
		return pump.NewTransportError(s.id, err)
	}
	return nil
}
