package filter

import (
	"errors"

	"github.com/streampump/pumpcore/pkg/processor"
	"github.com/streampump/pumpcore/pkg/pump"
)

var errNotAMap = errors.New("filter: event is not a map[string]any")

func init() {
	processor.Register("filter", NewProcessor)
}

// Processor drops an event unless it matches a condition expression,
// reusing the Bloblang-flavored condition registry (Evaluator/Converter)
// as-is: the `condition` option is parsed once at construction by this
// package's Converter. A non-matching event is dropped without an error;
// a non-map event or an evaluation failure is a soft error.
type Processor struct {
	id        string
	evaluator *Evaluator
}

// NewProcessor builds a Processor. Recognized options: condition (a
// filter expression string, e.g. `.status == 'active'`).
func NewProcessor(app *pump.Application, id string, options map[string]string) (pump.Stage, error) {
	expr := options["condition"]
	if expr == "" {
		return nil, pump.NewConfigError(id, "filter processor requires a condition option")
	}
	converter := NewConverter()
	structured, err := converter.ExpressionToStructured(expr)
	if err != nil {
		return nil, pump.NewConfigError(id, "invalid condition: "+err.Error())
	}
	evaluator, err := NewEvaluator(structured)
	if err != nil {
		return nil, pump.NewConfigError(id, "invalid condition: "+err.Error())
	}
	return &Processor{id: id, evaluator: evaluator}, nil
}

func (p *Processor) ID() string { return p.id }

func (p *Processor) Process(ctx pump.Context, event any) (any, error) {
	data, ok := event.(map[string]any)
	if !ok {
		return nil, pump.Soft(p.id, errNotAMap)
	}
	matched, err := p.evaluator.Evaluate(data)
	if err != nil {
		return nil, pump.Soft(p.id, err)
	}
	if !matched {
		return nil, nil
	}
	return event, nil
}
