package schema

import (
	"encoding/json"
	"fmt"

	"github.com/streampump/pumpcore/pkg/processor"
	"github.com/streampump/pumpcore/pkg/pump"
)

func init() {
	processor.Register("schema", NewProcessor)
}

// Processor validates each event's shape against a DataSchema built from
// its `schema` option (a JSON-encoded field-schema document, parsed once
// at construction via NewDataSchemaFromConfig). A validation failure is a
// soft error: the event is dropped and the pipeline logs a warning rather
// than faulting, since a malformed record is an expected, per-event
// condition rather than a pipeline-level fault.
type Processor struct {
	id     string
	schema *DataSchema
}

// NewProcessor builds a Processor. Recognized options: schema (a
// JSON-encoded field-schema document).
func NewProcessor(app *pump.Application, id string, options map[string]string) (pump.Stage, error) {
	raw := options["schema"]
	if raw == "" {
		return nil, pump.NewConfigError(id, "schema processor requires a schema option")
	}
	var cfg map[string]any
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, pump.NewConfigError(id, fmt.Sprintf("invalid schema: %v", err))
	}
	ds, err := NewDataSchemaFromConfig(cfg)
	if err != nil {
		return nil, pump.NewConfigError(id, fmt.Sprintf("invalid schema: %v", err))
	}
	return &Processor{id: id, schema: ds}, nil
}

func (p *Processor) ID() string { return p.id }

func (p *Processor) Process(ctx pump.Context, event any) (any, error) {
	data, ok := event.(map[string]any)
	if !ok {
		return nil, pump.Soft(p.id, fmt.Errorf("event is not a map[string]any"))
	}
	if err := p.schema.Validate(data); err != nil {
		return nil, pump.Soft(p.id, err)
	}
	return event, nil
}
