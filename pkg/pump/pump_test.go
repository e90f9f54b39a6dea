package pump

import (
	"log/slog"
	"testing"
)

func TestContextCopyIsolation(t *testing.T) {
	base := Context{"a": 1}
	copy1 := base.Copy()
	copy1["a"] = 2
	copy1["b"] = 3
	if base["a"] != 1 {
		t.Fatalf("mutating the copy affected the original")
	}
	if _, ok := base["b"]; ok {
		t.Fatalf("mutating the copy added a key to the original")
	}
}

func TestContextSetGet(t *testing.T) {
	var ctx Context
	ctx = ctx.Set("k", "v")
	v, ok := ctx.Get("k")
	if !ok || v != "v" {
		t.Fatalf("Get(k) = %v, %v", v, ok)
	}
}

func TestBusDeliversSynchronouslyInOrder(t *testing.T) {
	bus := NewBus()
	var order []int
	bus.Subscribe("t", func(string, any) { order = append(order, 1) })
	bus.Subscribe("t", func(string, any) { order = append(order, 2) })
	bus.Publish("t", nil)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	sub := bus.Subscribe("t", func(string, any) { calls++ })
	bus.Publish("t", nil)
	sub.Unsubscribe()
	bus.Publish("t", nil)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestBusWildcard(t *testing.T) {
	bus := NewBus()
	var seen []string
	bus.Subscribe("*", func(topic string, _ any) { seen = append(seen, topic) })
	bus.Publish("a", nil)
	bus.Publish("b", nil)
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("seen = %v", seen)
	}
}

func TestSoftHardErrors(t *testing.T) {
	soft := Soft("comp", errNamed("x"))
	if !IsSoft(soft) {
		t.Fatalf("expected soft error")
	}
	hard := Hard("comp", errNamed("x"))
	if IsSoft(hard) {
		t.Fatalf("expected hard error")
	}
}

type errNamed string

func (e errNamed) Error() string { return string(e) }

func TestRingHandlerBoundedAndCounts(t *testing.T) {
	var warns, errs int
	h := NewRingHandler(2, func() { warns++ }, func() { errs++ })
	log := slog.New(h)
	log.Warn("w1")
	log.Error("e1")
	log.Info("i1") // should not bump either counter
	log.Warn("w2")

	if warns != 2 || errs != 1 {
		t.Fatalf("warns=%d errs=%d, want 2/1", warns, errs)
	}
	records := h.Snapshot()
	if len(records) != 2 {
		t.Fatalf("Snapshot() len = %d, want 2 (bounded ring)", len(records))
	}
	if records[len(records)-1].Message != "w2" {
		t.Fatalf("most recent record = %+v", records[len(records)-1])
	}
}
