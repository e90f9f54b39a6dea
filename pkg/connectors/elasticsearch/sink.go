// Package elasticsearch adapts the teacher's index-provisioning patterns
// (`pkg/provisioner/elasticsearch_provisioner.go`) into a processor.Sink
// that indexes each event with its own Index API request via
// `elastic/go-elasticsearch/v8`.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/streampump/pumpcore/pkg/config"
	"github.com/streampump/pumpcore/pkg/processor"
	"github.com/streampump/pumpcore/pkg/pump"
)

func init() {
	processor.Register("elasticsearch", NewSink)
}

// Sink indexes each event into a single index via the Index API.
type Sink struct {
	id    string
	index string
	es    *elasticsearch.Client
}

// NewSink builds an Elasticsearch Sink. Recognized options: addresses
// (comma separated), username, password, index.
func NewSink(app *pump.Application, id string, options map[string]string) (pump.Stage, error) {
	opts := config.Merge(nil, options)
	if opts["index"] == "" {
		return nil, pump.NewConfigError(id, "elasticsearch sink requires index")
	}
	cfg := elasticsearch.Config{
		Addresses: splitCSV(opts["addresses"]),
		Username:  opts["username"],
		Password:  opts["password"],
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, pump.NewConfigError(id, fmt.Sprintf("new client: %v", err))
	}
	return &Sink{id: id, index: opts["index"], es: client}, nil
}

func (s *Sink) ID() string { return s.id }

func (s *Sink) Write(ctx pump.Context, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return pump.Soft(s.id, fmt.Errorf("marshal event: %w", err))
	}
	req := esapi.IndexRequest{Index: s.index, Body: bytes.NewReader(payload)}
	res, err := req.Do(context.Background(), s.es)
	if err != nil {
		return pump.NewTransportError(s.id, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return pump.NewTransportError(s.id, fmt.Errorf("index: %s", res.Status()))
	}
	return nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
