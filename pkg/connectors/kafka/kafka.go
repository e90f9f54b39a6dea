// Package kafka adapts the teacher's simulated KafkaSource ticker loop
// (`_examples/conduix-conduix/pipeline-core/pkg/source/kafka.go`) into a real source.Source/
// processor.Sink pair backed by `segmentio/kafka-go`.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/streampump/pumpcore/pkg/config"
	"github.com/streampump/pumpcore/pkg/pump"
	"github.com/streampump/pumpcore/pkg/source"
)

var defaults = map[string]string{
	"min_bytes":       "1",
	"max_bytes":       "10485760",
	"max_wait_ms":     "500",
	"start_offset":    "latest",
	"commit_interval": "1s",
}

func init() {
	source.Register("kafka", NewSource)
}

// Source reads one topic via a kafka.Reader and hands each decoded
// message to the owning pipeline, replacing the teacher's simulated
// reader with a real one.
type Source struct {
	*source.Base
	reader *kafkago.Reader
}

// NewSource builds a kafka Source. Recognized options: brokers (comma
// separated), topic, group_id, start_offset (earliest|latest), min_bytes,
// max_bytes, max_wait_ms, commit_interval (Go duration string).
func NewSource(app *pump.Application, id string, target source.Processor, options map[string]string) (source.Source, error) {
	opts := config.Merge(defaults, options)

	brokers := splitCSV(opts["brokers"])
	if len(brokers) == 0 {
		return nil, pump.NewConfigError(id, "kafka source requires brokers")
	}
	topic := opts["topic"]
	if topic == "" {
		return nil, pump.NewConfigError(id, "kafka source requires topic")
	}

	startOffset := kafkago.LastOffset
	if opts["start_offset"] == "earliest" || opts["start_offset"] == "beginning" {
		startOffset = kafkago.FirstOffset
	}
	minBytes, _ := strconv.Atoi(opts["min_bytes"])
	maxBytes, _ := strconv.Atoi(opts["max_bytes"])
	maxWaitMs, _ := strconv.Atoi(opts["max_wait_ms"])
	commitInterval, err := time.ParseDuration(opts["commit_interval"])
	if err != nil {
		return nil, pump.NewConfigError(id, fmt.Sprintf("invalid commit_interval: %v", err))
	}

	readerCfg := kafkago.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        opts["group_id"],
		MinBytes:       minBytes,
		MaxBytes:       maxBytes,
		MaxWait:        time.Duration(maxWaitMs) * time.Millisecond,
		StartOffset:    startOffset,
		CommitInterval: commitInterval,
	}

	s := &Source{reader: kafkago.NewReader(readerCfg)}
	s.Base = source.NewBase(id, func(ctx context.Context) { s.run(ctx, target) })
	return s, nil
}

func (s *Source) run(ctx context.Context, target source.Processor) {
	defer s.reader.Close()
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			return
		}

		var data map[string]any
		if err := json.Unmarshal(msg.Value, &data); err != nil {
			data = map[string]any{"key": string(msg.Key), "value": string(msg.Value)}
		}
		if len(msg.Key) > 0 {
			data["_key"] = string(msg.Key)
		}
		data["_topic"] = msg.Topic
		data["_partition"] = msg.Partition
		data["_offset"] = msg.Offset

		if err := target.Process(ctx, data); err != nil && ctx.Err() != nil {
			return
		}
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
