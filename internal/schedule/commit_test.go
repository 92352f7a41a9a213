package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingWriter struct {
	writes []string
	failOn string
}

var errDiskFull = errors.New("disk full")

func (w *recordingWriter) UpdateTaskTimes(_ context.Context, id string, _, _ time.Time) error {
	if id == w.failOn {
		return errDiskFull
	}
	w.writes = append(w.writes, id)
	return nil
}

func placedOutcome(id string, h int) Outcome {
	return Outcome{TaskID: id, State: StatePlaced, Slot: iv(h, 0, h+1, 0)}
}

func TestCommitReportsSuccessesAndUnschedulable(t *testing.T) {
	t.Parallel()
	w := &recordingWriter{}
	outcomes := []Outcome{
		placedOutcome("a", 8),
		{TaskID: "b", State: StateExhausted, Reason: ReasonNoSlot},
		placedOutcome("c", 9),
	}
	rep, err := Commit(context.Background(), w, outcomes)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(w.writes) != 2 || w.writes[0] != "a" || w.writes[1] != "c" {
		t.Fatalf("writes = %v, want [a c]", w.writes)
	}
	if len(rep.Scheduled) != 2 || rep.Scheduled[1].ID != "c" || !rep.Scheduled[1].Start.Equal(at(9, 0)) {
		t.Fatalf("scheduled = %+v", rep.Scheduled)
	}
	if len(rep.Unschedulable) != 1 || rep.Unschedulable[0] != "b" || rep.Reasons["b"] != ReasonNoSlot {
		t.Fatalf("unschedulable = %v reasons = %v", rep.Unschedulable, rep.Reasons)
	}
	if len(rep.Failed) != 0 {
		t.Fatalf("failed = %v", rep.Failed)
	}
}

func TestCommitStopsAtFirstFailure(t *testing.T) {
	t.Parallel()
	w := &recordingWriter{failOn: "b"}
	outcomes := []Outcome{
		placedOutcome("a", 8),
		placedOutcome("b", 9),
		{TaskID: "x", State: StateExhausted, Reason: ReasonNoSlot},
		placedOutcome("c", 10),
	}
	rep, err := Commit(context.Background(), w, outcomes)

	var ce *CommitError
	if !errors.As(err, &ce) || ce.TaskID != "b" {
		t.Fatalf("err = %v, want CommitError for b", err)
	}
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("err does not wrap cause: %v", err)
	}
	if len(w.writes) != 1 || w.writes[0] != "a" {
		t.Fatalf("writes = %v, want [a]", w.writes)
	}
	if len(rep.Scheduled) != 1 || rep.Scheduled[0].ID != "a" {
		t.Fatalf("scheduled = %+v", rep.Scheduled)
	}
	if len(rep.Failed) != 2 || rep.Failed[0] != "b" || rep.Failed[1] != "c" {
		t.Fatalf("failed = %v, want [b c]", rep.Failed)
	}
	if len(rep.Unschedulable) != 1 {
		t.Fatalf("unschedulable tasks must still be reported: %v", rep.Unschedulable)
	}
}
