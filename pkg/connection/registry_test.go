package connection

import (
	"context"
	"testing"

	"github.com/streampump/pumpcore/pkg/pump"
)

type stubConnection struct{ Base }

func (stubConnection) Open(ctx context.Context) error  { return nil }
func (stubConnection) Close(ctx context.Context) error { return nil }

func TestConnectionRegisterAndNew(t *testing.T) {
	Register("stub-connection", func(app *pump.Application, id string, options map[string]string) (Connection, error) {
		return &stubConnection{Base: NewBase(id)}, nil
	})
	conn, err := New(nil, "stub-connection", "c1", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if conn.Id() != "c1" {
		t.Fatalf("Id() = %q, want c1", conn.Id())
	}
}

func TestConnectionNewUnknownType(t *testing.T) {
	_, err := New(nil, "does-not-exist", "c1", nil)
	if err == nil {
		t.Fatal("expected error for unregistered type")
	}
	if _, ok := err.(*pump.ConfigError); !ok {
		t.Fatalf("expected *pump.ConfigError, got %T", err)
	}
}
