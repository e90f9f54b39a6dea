package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/streampump/pumpcore/pkg/config"
	"github.com/streampump/pumpcore/pkg/processor"
	"github.com/streampump/pumpcore/pkg/pump"
)

func init() {
	processor.Register("kafka", NewSink)
}

// Sink writes every event, JSON-encoded, to a Kafka topic via
// kafka.Writer, grounded on the teacher's reader/writer pairing idiom in
// `_examples/conduix-conduix/pipeline-core/pkg/source/kafka.go`.
type Sink struct {
	id     string
	writer *kafkago.Writer
}

// NewSink builds a kafka Sink. Recognized options: brokers (comma
// separated), topic.
func NewSink(app *pump.Application, id string, options map[string]string) (pump.Stage, error) {
	opts := config.Merge(nil, options)
	brokers := splitCSV(opts["brokers"])
	if len(brokers) == 0 {
		return nil, pump.NewConfigError(id, "kafka sink requires brokers")
	}
	topic := opts["topic"]
	if topic == "" {
		return nil, pump.NewConfigError(id, "kafka sink requires topic")
	}
	return &Sink{
		id: id,
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafkago.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}, nil
}

func (s *Sink) ID() string { return s.id }

func (s *Sink) Write(ctx pump.Context, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return pump.Soft(s.id, fmt.Errorf("marshal event: %w", err))
	}
	if err := s.writer.WriteMessages(context.Background(), kafkago.Message{Value: payload}); err != nil {
		return pump.NewTransportError(s.id, err)
	}
	return nil
}
