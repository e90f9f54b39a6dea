// Package lookups ships three concrete Lookups: ElasticsearchLookup,
// ported from `original_source/bspump/elasticsearch/lookup.py`,
// MySQLLookup, ported from `original_source/bspump/mysql/lookup.py`, and
// RedisCacheLookup (redis.go). All three implement lookup.Fetcher and sit
// on top of lookup.Base for caching/counters.
package lookups

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/streampump/pumpcore/pkg/config"
	"github.com/streampump/pumpcore/pkg/lookup"
	"github.com/streampump/pumpcore/pkg/metrics"
	"github.com/streampump/pumpcore/pkg/pump"
)

func init() {
	lookup.Register("elasticsearch", NewElasticsearchLookup)
}

// esFetcher implements lookup.Fetcher against a single ES index, matching
// the Python ElasticSearchLookup's `_find_one`/`_count` queries.
type esFetcher struct {
	es    *elasticsearch.Client
	index string
	field string
}

// NewElasticsearchLookup builds a lookup.Lookup backed by Elasticsearch.
// Recognized options: addresses (comma separated), username, password,
// index, field (the field matched against the lookup key).
func NewElasticsearchLookup(app *pump.Application, id string, options map[string]string) (lookup.Lookup, error) {
	opts := config.Merge(map[string]string{"field": "_id"}, options)
	if opts["index"] == "" {
		return nil, pump.NewConfigError(id, "elasticsearch lookup requires index")
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: splitCSV(opts["addresses"]),
		Username:  opts["username"],
		Password:  opts["password"],
	})
	if err != nil {
		return nil, pump.NewConfigError(id, fmt.Sprintf("new client: %v", err))
	}

	var registry *metrics.Registry
	if app != nil {
		registry = app.Metrics
	}
	f := &esFetcher{es: client, index: opts["index"], field: opts["field"]}
	return lookup.NewBase(id, f, registry), nil
}

func (f *esFetcher) FetchOne(ctx context.Context, key string) (any, error) {
	query, err := json.Marshal(map[string]any{
		"query": map[string]any{"match": map[string]any{f.field: key}},
		"size":  1,
	})
	if err != nil {
		return nil, err
	}
	res, err := f.es.Search(
		f.es.Search.WithContext(ctx),
		f.es.Search.WithIndex(f.index),
		f.es.Search.WithBody(bytes.NewReader(query)),
	)
	if err != nil {
		return nil, pump.NewTransportError("elasticsearch-lookup", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, pump.NewTransportError("elasticsearch-lookup", fmt.Errorf("search: %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Hits.Hits) == 0 {
		return nil, pump.ErrNotFound
	}
	return parsed.Hits.Hits[0].Source, nil
}

func (f *esFetcher) FetchAll(ctx context.Context) (map[string]any, error) {
	query, err := json.Marshal(map[string]any{"query": map[string]any{"match_all": map[string]any{}}})
	if err != nil {
		return nil, err
	}
	res, err := f.es.Search(
		f.es.Search.WithContext(ctx),
		f.es.Search.WithIndex(f.index),
		f.es.Search.WithBody(bytes.NewReader(query)),
		f.es.Search.WithSize(10000),
	)
	if err != nil {
		return nil, pump.NewTransportError("elasticsearch-lookup", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, pump.NewTransportError("elasticsearch-lookup", fmt.Errorf("search: %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Id     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out[h.Id] = h.Source
	}
	return out, nil
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
