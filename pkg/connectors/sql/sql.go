// Package sql adapts the teacher's query-based SQLSource
// (`_examples/conduix-conduix/pipeline-core/pkg/source/sql.go`) into a source.Source that polls a
// query on an interval, registering both `go-sql-driver/mysql` and
// `lib/pq` as usable drivers via a driver-name switch — the same
// generalization the teacher's source already made ("SQL" generically).
package sql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/streampump/pumpcore/pkg/config"
	"github.com/streampump/pumpcore/pkg/pump"
	"github.com/streampump/pumpcore/pkg/source"
)

var defaults = map[string]string{
	"poll_interval": "5s",
}

func init() {
	source.Register("sql", NewSource)
}

// Source runs query on driver/dsn every poll_interval and emits one event
// per returned row.
type Source struct {
	*source.Base
	db    *sql.DB
	query string
}

// NewSource builds a polling SQL Source. Recognized options: driver
// (mysql|postgres), dsn, query, poll_interval (Go duration string).
func NewSource(app *pump.Application, id string, target source.Processor, options map[string]string) (source.Source, error) {
	opts := config.Merge(defaults, options)

	driverName, err := driverFor(opts["driver"])
	if err != nil {
		return nil, pump.NewConfigError(id, err.Error())
	}
	if opts["dsn"] == "" {
		return nil, pump.NewConfigError(id, "sql source requires dsn")
	}
	if opts["query"] == "" {
		return nil, pump.NewConfigError(id, "sql source requires query")
	}
	interval, err := time.ParseDuration(opts["poll_interval"])
	if err != nil {
		return nil, pump.NewConfigError(id, fmt.Sprintf("invalid poll_interval: %v", err))
	}

	db, err := sql.Open(driverName, opts["dsn"])
	if err != nil {
		return nil, pump.NewConfigError(id, fmt.Sprintf("open database: %v", err))
	}

	s := &Source{db: db, query: opts["query"]}
	s.Base = source.NewBase(id, func(ctx context.Context) { s.run(ctx, target, interval) })
	return s, nil
}

func driverFor(name string) (string, error) {
	switch name {
	case "mysql":
		return "mysql", nil
	case "postgres", "postgresql":
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported sql driver %q (want mysql or postgres)", name)
	}
}

func (s *Source) run(ctx context.Context, target source.Processor, interval time.Duration) {
	defer s.db.Close()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.poll(ctx, target); err != nil && ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Source) poll(ctx context.Context, target source.Processor) error {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return pump.NewTransportError(s.ID(), err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return pump.NewTransportError(s.ID(), err)
	}

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return pump.NewTransportError(s.ID(), err)
		}
		data := make(map[string]any, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			data[col] = v
		}
		if err := target.Process(ctx, data); err != nil && ctx.Err() != nil {
			return err
		}
	}
	return rows.Err()
}
