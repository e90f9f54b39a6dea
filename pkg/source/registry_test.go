package source

import (
	"context"
	"testing"

	"github.com/streampump/pumpcore/pkg/pump"
)

type stubProcessor struct{}

func (stubProcessor) Process(ctx context.Context, event any) error { return nil }

func TestSourceRegisterAndNew(t *testing.T) {
	Register("stub-source", func(app *pump.Application, id string, target Processor, options map[string]string) (Source, error) {
		return NewBase(id, func(ctx context.Context) {}), nil
	})
	src, err := New(nil, "stub-source", "s1", stubProcessor{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if src.ID() != "s1" {
		t.Fatalf("ID() = %q, want s1", src.ID())
	}
}

func TestSourceNewUnknownType(t *testing.T) {
	_, err := New(nil, "does-not-exist", "s1", stubProcessor{}, nil)
	if err == nil {
		t.Fatal("expected error for unregistered type")
	}
	if _, ok := err.(*pump.ConfigError); !ok {
		t.Fatalf("expected *pump.ConfigError, got %T", err)
	}
}
