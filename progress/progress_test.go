package progress

import (
	"testing"

	"github.com/corework/dagflow/wftypes"
)

func TestInMemorySinkSnapshotIsDefensiveCopy(t *testing.T) {
	sink := NewInMemorySink()
	sink.Emit(wftypes.ProgressEvent{EventType: wftypes.EventStepStart, StepName: "a"})

	snap := sink.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("len(snap) = %d, want 1", len(snap))
	}
	snap[0].StepName = "mutated"

	snap2 := sink.Snapshot()
	if snap2[0].StepName != "a" {
		t.Fatal("mutating a snapshot slice leaked back into the sink")
	}
}

func TestInMemorySinkClear(t *testing.T) {
	sink := NewInMemorySink()
	sink.Emit(wftypes.ProgressEvent{EventType: wftypes.EventStepComplete})
	sink.Clear()
	if len(sink.Snapshot()) != 0 {
		t.Fatal("Clear should empty the event log")
	}
}

type recordingSink struct {
	events []wftypes.ProgressEvent
}

func (r *recordingSink) Emit(e wftypes.ProgressEvent) { r.events = append(r.events, e) }

func TestMultiFansOutToEverySink(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	multi := Multi{Sinks: []Sink{a, b, nil}}

	multi.Emit(wftypes.ProgressEvent{EventType: wftypes.EventWorkflowComplete})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected both sinks to receive the event, got a=%d b=%d", len(a.events), len(b.events))
	}
}
