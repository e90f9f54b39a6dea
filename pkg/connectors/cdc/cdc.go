// Package cdc adapts the teacher's MySQL-binlog CDCSource
// (`_examples/conduix-conduix/pipeline-core/pkg/source/cdc.go`) into a source.Source backed by
// `go-mysql-org/go-mysql`'s canal replication client.
package cdc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-mysql-org/go-mysql/canal"
	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/go-mysql-org/go-mysql/schema"

	"github.com/streampump/pumpcore/pkg/config"
	"github.com/streampump/pumpcore/pkg/pump"
	"github.com/streampump/pumpcore/pkg/source"
)

var defaults = map[string]string{
	"port":      "3306",
	"server_id": "101",
}

func init() {
	source.Register("cdc", NewSource)
}

// Source replicates MySQL binlog row events for the configured tables and
// emits one event per row change.
type Source struct {
	*source.Base
	canal *canal.Canal
}

// NewSource builds a MySQL CDC Source. Recognized options: host, port,
// username, password, database, tables (comma separated regex list),
// server_id.
func NewSource(app *pump.Application, id string, target source.Processor, options map[string]string) (source.Source, error) {
	opts := config.Merge(defaults, options)
	if opts["host"] == "" || opts["username"] == "" {
		return nil, pump.NewConfigError(id, "cdc source requires host and username")
	}
	port, _ := strconv.Atoi(opts["port"])
	serverID, _ := strconv.ParseUint(opts["server_id"], 10, 32)

	cfg := canal.NewDefaultConfig()
	cfg.Addr = fmt.Sprintf("%s:%d", opts["host"], port)
	cfg.User = opts["username"]
	cfg.Password = opts["password"]
	cfg.ServerID = uint32(serverID)
	cfg.Flavor = "mysql"
	if tables := splitCSV(opts["tables"]); len(tables) > 0 {
		cfg.IncludeTableRegex = tables
	}

	c, err := canal.NewCanal(cfg)
	if err != nil {
		return nil, pump.NewConfigError(id, fmt.Sprintf("create canal: %v", err))
	}

	s := &Source{canal: c}
	c.SetEventHandler(&rowHandler{id: id, target: target})
	s.Base = source.NewBase(id, s.run)
	return s, nil
}

func (s *Source) run(ctx context.Context) {
	defer s.canal.Close()
	pos, err := s.canal.GetMasterPos()
	if err != nil {
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.canal.RunFrom(pos)
	}()
	select {
	case <-ctx.Done():
		s.canal.Close()
		<-done
	case <-done:
	}
}

// rowHandler turns canal row events into plain events on target, the Go
// realization of the teacher's mysqlEventHandler.
type rowHandler struct {
	canal.DummyEventHandler
	id     string
	target source.Processor
}

func (h *rowHandler) OnRow(e *canal.RowsEvent) error {
	var action string
	switch e.Action {
	case canal.InsertAction, canal.UpdateAction, canal.DeleteAction:
		action = e.Action
	default:
		return nil
	}

	columns := e.Table.Columns
	emit := func(data map[string]any) {
		data["_cdc_action"] = action
		data["_database"] = e.Table.Schema
		data["_table"] = e.Table.Name
		data["_timestamp"] = time.Now().UnixMilli()
		h.target.Process(context.Background(), data)
	}

	if action == canal.UpdateAction {
		for i := 0; i+1 < len(e.Rows); i += 2 {
			data := rowToMap(columns, e.Rows[i+1])
			data["_old"] = rowToMap(columns, e.Rows[i])
			emit(data)
		}
		return nil
	}
	for _, row := range e.Rows {
		emit(rowToMap(columns, row))
	}
	return nil
}

func (h *rowHandler) OnPosSynced(*replication.EventHeader, mysql.Position, mysql.GTIDSet, bool) error {
	return nil
}

func (h *rowHandler) String() string { return "pumpcore.cdc.rowHandler" }

func rowToMap(columns []schema.TableColumn, row []any) map[string]any {
	data := make(map[string]any, len(columns))
	for i, col := range columns {
		if i >= len(row) {
			continue
		}
		v := row[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		data[col.Name] = v
	}
	return data
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if part := strings.TrimSpace(s[start:i]); part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
