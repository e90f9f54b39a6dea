// Package http adapts the teacher's HTTPSource
// (`_examples/conduix-conduix/pipeline-core/pkg/source/http.go`) into a polling source.Source,
// trimmed to its GET-and-decode-JSON core (OAuth2/pagination handling is
// left to the original's scope, not a core-runtime concern).
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/streampump/pumpcore/pkg/config"
	"github.com/streampump/pumpcore/pkg/pump"
	"github.com/streampump/pumpcore/pkg/source"
)

var defaults = map[string]string{
	"method":        "GET",
	"poll_interval": "10s",
}

func init() {
	source.Register("http", NewSource)
}

// Source polls a URL on an interval and emits the decoded JSON response
// body as one event per poll.
type Source struct {
	*source.Base
	client *http.Client
	url    string
	method string
}

// NewSource builds a polling HTTP Source. Recognized options: url,
// method, poll_interval (Go duration string).
func NewSource(app *pump.Application, id string, target source.Processor, options map[string]string) (source.Source, error) {
	opts := config.Merge(defaults, options)
	if opts["url"] == "" {
		return nil, pump.NewConfigError(id, "http source requires url")
	}
	interval, err := time.ParseDuration(opts["poll_interval"])
	if err != nil {
		return nil, pump.NewConfigError(id, fmt.Sprintf("invalid poll_interval: %v", err))
	}

	s := &Source{client: &http.Client{Timeout: 30 * time.Second}, url: opts["url"], method: opts["method"]}
	s.Base = source.NewBase(id, func(ctx context.Context) { s.run(ctx, target, interval) })
	return s, nil
}

func (s *Source) run(ctx context.Context, target source.Processor, interval time.Duration) {
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
	req, err := http.NewRequestWithContext(ctx, s.method, s.url, nil)
	if err != nil {
		return pump.NewTransportError(s.ID(), err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return pump.NewTransportError(s.ID(), err)
	}
	defer resp.Body.Close()

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return pump.Soft(s.ID(), fmt.Errorf("decode response: %w", err))
	}
	data["_status"] = resp.StatusCode
	data["_url"] = s.url
	return target.Process(ctx, data)
}
