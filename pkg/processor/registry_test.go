package processor

import (
	"testing"

	"github.com/streampump/pumpcore/pkg/pump"
)

type stubStage struct{ id string }

func (s *stubStage) ID() string { return s.id }

func TestProcessorRegisterAndNew(t *testing.T) {
	Register("stub-processor", func(app *pump.Application, id string, options map[string]string) (pump.Stage, error) {
		return &stubStage{id: id}, nil
	})
	stage, err := New(nil, "stub-processor", "p1", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if stage.ID() != "p1" {
		t.Fatalf("ID() = %q, want p1", stage.ID())
	}
}

func TestProcessorNewUnknownType(t *testing.T) {
	_, err := New(nil, "does-not-exist", "p1", nil)
	if err == nil {
		t.Fatal("expected error for unregistered type")
	}
	if _, ok := err.(*pump.ConfigError); !ok {
		t.Fatalf("expected *pump.ConfigError, got %T", err)
	}
}
