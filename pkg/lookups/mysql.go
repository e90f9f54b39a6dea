package lookups

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/streampump/pumpcore/pkg/config"
	"github.com/streampump/pumpcore/pkg/lookup"
	"github.com/streampump/pumpcore/pkg/metrics"
	"github.com/streampump/pumpcore/pkg/pump"
)

func init() {
	lookup.Register("mysql", NewMySQLLookup)
}

// mysqlFetcher implements lookup.Fetcher over a MySQL table, matching the
// Python MySQLLookup's `_find_one`/`_count` queries (ported faithfully
// rather than left as the original's stubbed `return {}`/`return
// 1000500`).
type mysqlFetcher struct {
	db    *sql.DB
	table string
	key   string
}

// NewMySQLLookup builds a lookup.Lookup backed by a MySQL table.
// Recognized options: dsn, table, key (the column matched against the
// lookup key).
func NewMySQLLookup(app *pump.Application, id string, options map[string]string) (lookup.Lookup, error) {
	opts := config.Merge(nil, options)
	if opts["dsn"] == "" || opts["table"] == "" || opts["key"] == "" {
		return nil, pump.NewConfigError(id, "mysql lookup requires dsn, table and key")
	}
	db, err := sql.Open("mysql", opts["dsn"])
	if err != nil {
		return nil, pump.NewConfigError(id, fmt.Sprintf("open database: %v", err))
	}

	var registry *metrics.Registry
	if app != nil {
		registry = app.Metrics
	}
	f := &mysqlFetcher{db: db, table: opts["table"], key: opts["key"]}
	return lookup.NewBase(id, f, registry), nil
}

func (f *mysqlFetcher) FetchOne(ctx context.Context, key string) (any, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", f.table, f.key)
	row, err := f.scanOne(ctx, query, key)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, pump.ErrNotFound
	}
	return row, nil
}

func (f *mysqlFetcher) FetchAll(ctx context.Context) (map[string]any, error) {
	rows, err := f.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", f.table))
	if err != nil {
		return nil, pump.NewTransportError("mysql-lookup", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, pump.NewTransportError("mysql-lookup", err)
	}

	out := make(map[string]any)
	for rows.Next() {
		data, err := scanRow(rows, columns)
		if err != nil {
			return nil, pump.NewTransportError("mysql-lookup", err)
		}
		keyVal := fmt.Sprintf("%v", data[f.key])
		out[keyVal] = data
	}
	return out, rows.Err()
}

func (f *mysqlFetcher) scanOne(ctx context.Context, query string, args ...any) (map[string]any, error) {
	rows, err := f.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pump.NewTransportError("mysql-lookup", err)
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, pump.NewTransportError("mysql-lookup", err)
	}
	if !rows.Next() {
		return nil, nil
	}
	return scanRow(rows, columns)
}

func scanRow(rows *sql.Rows, columns []string) (map[string]any, error) {
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	data := make(map[string]any, len(columns))
	for i, col := range columns {
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		data[col] = v
	}
	return data, nil
}
