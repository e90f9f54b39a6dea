package processor

import (
	"encoding/json"
	"fmt"

	"github.com/streampump/pumpcore/pkg/pump"
)

// Putter is the minimal capability Tee needs from its target: an
// unbounded queue accepting events without blocking. source.Internal
// satisfies this structurally; Tee does not import package source to
// avoid a cycle.
type Putter interface {
	PutNowait(event any)
}

// Tee deep-copies every event it sees via a JSON marshal/unmarshal round
// trip and forwards the copy to Target, returning the original event
// unchanged. It is the Go realization of
// `bspump.common.tee.TeeProcessor`, used to fan an event out to another
// pipeline's Internal source without letting the two pipelines share
// mutable state.
//
// The JSON round trip (rather than a generic deep-copy routine) mirrors
// how every shipped connector already shapes events as
// map[string]any/JSON-compatible values, the same assumption the
// teacher's ConsoleSink makes when it encodes events with encoding/json.
type Tee struct {
	id     string
	Target Putter
}

// NewTee returns a Tee identified by id, forwarding copies to target.
// target is typically resolved from the Service by address before the
// owning pipeline starts.
func NewTee(id string, target Putter) *Tee {
	return &Tee{id: id, Target: target}
}

func (t *Tee) ID() string { return t.id }

func (t *Tee) Process(ctx pump.Context, event any) (any, error) {
	if t.Target == nil {
		return nil, fmt.Errorf("processor %s: tee target not resolved", t.id)
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, pump.Soft(t.id, fmt.Errorf("tee: marshal event: %w", err))
	}
	var copyEvent any
	if err := json.Unmarshal(raw, &copyEvent); err != nil {
		return nil, pump.Soft(t.id, fmt.Errorf("tee: unmarshal event copy: %w", err))
	}
	t.Target.PutNowait(copyEvent)
	return event, nil
}
