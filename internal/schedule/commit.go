package schedule

import (
	"context"
	"fmt"
	"time"
)

// Writer persists a task's new start/end. It is the only side effect of a pass.
type Writer interface {
	UpdateTaskTimes(ctx context.Context, id string, start, end time.Time) error
}

// Placement is a committed task slot.
type Placement struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Report aggregates a pass.
//
// Scheduled holds placements that were written. Unschedulable holds tasks whose search was
// exhausted. Failed holds placed tasks that were not written because an earlier write failed.
type Report struct {
	Scheduled     []Placement
	Unschedulable []string
	Reasons       map[string]Reason
	Failed        []string
}

// CommitError reports the write that aborted a commit. Earlier writes stay applied.
type CommitError struct {
	TaskID string
	Err    error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit task %s: %v", e.TaskID, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Commit writes placed outcomes in order, one write per task.
//
// The commit is best-effort, not atomic: on the first failed write it stops, and the returned
// Report still lists the placements written so far. The error is a *CommitError.
func Commit(ctx context.Context, w Writer, outcomes []Outcome) (Report, error) {
	rep := Report{
		Scheduled:     []Placement{},
		Unschedulable: []string{},
		Reasons:       map[string]Reason{},
	}
	var firstErr error
	for _, o := range outcomes {
		switch {
		case o.State == StateExhausted:
			rep.Unschedulable = append(rep.Unschedulable, o.TaskID)
			rep.Reasons[o.TaskID] = o.Reason
		case !o.Placed():
			continue
		case firstErr != nil:
			rep.Failed = append(rep.Failed, o.TaskID)
		default:
			if err := w.UpdateTaskTimes(ctx, o.TaskID, o.Slot.Start.UTC(), o.Slot.End.UTC()); err != nil {
				firstErr = &CommitError{TaskID: o.TaskID, Err: err}
				rep.Failed = append(rep.Failed, o.TaskID)
				continue
			}
			rep.Scheduled = append(rep.Scheduled, Placement{ID: o.TaskID, Start: o.Slot.Start.UTC(), End: o.Slot.End.UTC()})
		}
	}
	return rep, firstErr
}
