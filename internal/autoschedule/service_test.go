package autoschedule

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"novacal/internal/eventbus"
	"novacal/internal/schedule"
	"novacal/internal/storage"
	logx "novacal/pkg/logx"
)

// at returns 2026-03-02 (a Monday) plus d days, h:m UTC.
func at(d, h, m int) time.Time { return time.Date(2026, 3, 2+d, h, m, 0, 0, time.UTC) }

func fixedClock() time.Time { return at(0, 6, 0) }

func seed(t *testing.T, st storage.Store, tasks ...schedule.Task) {
	t.Helper()
	for _, task := range tasks {
		if _, err := st.CreateTask(context.Background(), task); err != nil {
			t.Fatalf("create %s: %v", task.ID, err)
		}
	}
}

func pending(id, owner string, due time.Time) schedule.Task {
	return schedule.Task{ID: id, OwnerID: owner, Title: id, Start: at(0, 15, 0), End: at(0, 16, 0), Due: due, AutoSchedule: true}
}

func newService(st Store, opts ...Option) *Service {
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return New(Config{}, st, logx.Nop(), opts...)
}

type failingWriter struct {
	storage.Store
	failOn string
}

func (f failingWriter) UpdateTaskTimes(ctx context.Context, id string, start, end time.Time) error {
	if id == f.failOn {
		return errors.New("disk full")
	}
	return f.Store.UpdateTaskTimes(ctx, id, start, end)
}

type fakeSource struct {
	ivs []schedule.Interval
	err error
}

func (fakeSource) Name() string { return "fake" }

func (f fakeSource) Busy(context.Context, string, time.Time, time.Time) ([]schedule.Interval, error) {
	return f.ivs, f.err
}

func TestSchedulePlacesAroundExistingTasks(t *testing.T) {
	t.Parallel()
	st := storage.NewMemory()
	seed(t, st,
		schedule.Task{ID: "meeting", OwnerID: "alice", Start: at(0, 8, 0), End: at(0, 9, 0)},
		pending("write", "alice", at(2, 22, 0)),
		pending("foreign", "bob", at(2, 22, 0)),
	)

	res, err := newService(st).Schedule(context.Background(), Request{
		OwnerID: "alice",
		TaskIDs: []string{"write", " write ", "foreign", "ghost"},
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(res.Scheduled) != 1 {
		t.Fatalf("scheduled = %+v", res.Scheduled)
	}
	p := res.Scheduled[0]
	if p.ID != "write" || !p.Start.Equal(at(0, 9, 0)) || !p.End.Equal(at(0, 10, 0)) {
		t.Fatalf("placement = %+v", p)
	}
	if len(res.Missing) != 2 || res.Missing[0] != "foreign" || res.Missing[1] != "ghost" {
		t.Fatalf("missing = %v", res.Missing)
	}

	got, err := st.TasksByIDs(context.Background(), "alice", []string{"write"})
	if err != nil || len(got) != 1 {
		t.Fatalf("reload: %v %v", got, err)
	}
	if !got[0].Start.Equal(at(0, 9, 0)) {
		t.Fatalf("stored start = %s", got[0].Start)
	}
}

func TestScheduleRequestErrors(t *testing.T) {
	t.Parallel()
	st := storage.NewMemory()
	seed(t, st, pending("a", "alice", at(1, 22, 0)))
	svc := New(Config{MaxBatch: 2}, st, logx.Nop(), WithClock(fixedClock))

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"no owner", Request{TaskIDs: []string{"a"}}, ErrUnauthorized},
		{"empty ids", Request{OwnerID: "alice"}, ErrValidation},
		{"blank ids", Request{OwnerID: "alice", TaskIDs: []string{" ", ""}}, ErrValidation},
		{"too many", Request{OwnerID: "alice", TaskIDs: []string{"a", "b", "c"}}, ErrValidation},
		{"none owned", Request{OwnerID: "bob", TaskIDs: []string{"a"}}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Schedule(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !IsRequestError(err) {
				t.Fatalf("IsRequestError(%v) = false", err)
			}
		})
	}
}

func TestScheduleDryRunDoesNotWrite(t *testing.T) {
	t.Parallel()
	st := storage.NewMemory()
	seed(t, st, pending("a", "alice", at(1, 22, 0)))

	res, err := newService(st).Schedule(context.Background(), Request{OwnerID: "alice", TaskIDs: []string{"a"}, DryRun: true})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(res.Scheduled) != 1 || !res.Scheduled[0].Start.Equal(at(0, 8, 0)) {
		t.Fatalf("scheduled = %+v", res.Scheduled)
	}
	got, _ := st.TasksByIDs(context.Background(), "alice", []string{"a"})
	if !got[0].Start.Equal(at(0, 15, 0)) {
		t.Fatalf("dry run moved task to %s", got[0].Start)
	}
}

func TestScheduleUsesOwnerWorkingHours(t *testing.T) {
	t.Parallel()
	st := storage.NewMemory()
	seed(t, st, pending("a", "alice", at(2, 22, 0)))
	closed := schedule.Clock{Hour: 9}
	err := st.PutWorkingHours(context.Background(), "alice", []storage.WorkingHours{
		{Day: time.Monday, Start: closed, End: closed},
		{Day: time.Tuesday, Start: schedule.Clock{Hour: 13, Minute: 30}, End: schedule.Clock{Hour: 17}},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := newService(st).Schedule(context.Background(), Request{OwnerID: "alice", TaskIDs: []string{"a"}})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(res.Scheduled) != 1 || !res.Scheduled[0].Start.Equal(at(1, 13, 30)) {
		t.Fatalf("scheduled = %+v", res.Scheduled)
	}
}

func TestScheduleLocationShiftsWindow(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+2", 2*60*60)
	st := storage.NewMemory()
	seed(t, st, pending("a", "alice", at(2, 22, 0)))
	svc := New(Config{Location: loc}, st, logx.Nop(), WithClock(fixedClock))

	res, err := svc.Schedule(context.Background(), Request{OwnerID: "alice", TaskIDs: []string{"a"}})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	// 08:00 in UTC+2 is 06:00 UTC, which is exactly now.
	if len(res.Scheduled) != 1 || !res.Scheduled[0].Start.Equal(at(0, 6, 0)) {
		t.Fatalf("scheduled = %+v", res.Scheduled)
	}
	if res.Scheduled[0].Start.Location() != time.UTC {
		t.Fatalf("placement not in UTC: %s", res.Scheduled[0].Start)
	}
}

func TestScheduleBusySources(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  fakeSource
		want time.Time
	}{
		{"intervals block", fakeSource{ivs: []schedule.Interval{{Start: at(0, 8, 0), End: at(0, 10, 0)}}}, at(0, 10, 0)},
		{"error is ignored", fakeSource{err: errors.New("quota exceeded")}, at(0, 8, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := storage.NewMemory()
			seed(t, st, pending("a", "alice", at(1, 22, 0)))
			res, err := newService(st, WithBusySources(tt.src)).Schedule(context.Background(), Request{OwnerID: "alice", TaskIDs: []string{"a"}})
			if err != nil {
				t.Fatalf("Schedule: %v", err)
			}
			if len(res.Scheduled) != 1 || !res.Scheduled[0].Start.Equal(tt.want) {
				t.Fatalf("scheduled = %+v, want start %s", res.Scheduled, tt.want)
			}
		})
	}
}

func TestScheduleCommitFailureReturnsPartialResult(t *testing.T) {
	t.Parallel()
	st := storage.NewMemory()
	seed(t, st,
		pending("first", "alice", at(0, 20, 0)),
		pending("second", "alice", at(1, 20, 0)),
		pending("third", "alice", at(2, 20, 0)),
	)
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	svc := newService(failingWriter{Store: st, failOn: "second"}, WithBus(bus))
	res, err := svc.Schedule(context.Background(), Request{OwnerID: "alice", TaskIDs: []string{"third", "second", "first"}})

	var ce *schedule.CommitError
	if !errors.As(err, &ce) || ce.TaskID != "second" {
		t.Fatalf("err = %v, want CommitError for second", err)
	}
	if IsRequestError(err) {
		t.Fatal("commit failure reported as request error")
	}
	if len(res.Scheduled) != 1 || res.Scheduled[0].ID != "first" {
		t.Fatalf("scheduled = %+v", res.Scheduled)
	}
	if len(res.Failed) != 2 || res.Failed[0] != "second" || res.Failed[1] != "third" {
		t.Fatalf("failed = %v", res.Failed)
	}

	ev := <-events
	sum, ok := ev.Data.(eventbus.PassSummary)
	if !ok || ev.Type != eventbus.TypePassCompleted {
		t.Fatalf("event = %+v", ev)
	}
	if sum.OwnerID != "alice" || sum.Trigger != TriggerAPI || sum.Scheduled != 1 || sum.Err == "" {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestSchedulePublishesUnschedulable(t *testing.T) {
	t.Parallel()
	st := storage.NewMemory()
	seed(t, st, pending("late", "alice", at(-1, 12, 0)))
	bus := eventbus.New()
	events, unsub := bus.Subscribe(1)
	defer unsub()

	res, err := newService(st, WithBus(bus)).Schedule(context.Background(), Request{OwnerID: "alice", TaskIDs: []string{"late"}, Trigger: TriggerSweep})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(res.Unschedulable) != 1 || res.Reasons["late"] != schedule.ReasonDeadlinePassed {
		t.Fatalf("unschedulable = %v reasons = %v", res.Unschedulable, res.Reasons)
	}
	sum := (<-events).Data.(eventbus.PassSummary)
	if sum.Trigger != TriggerSweep || len(sum.Unschedulable) != 1 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestApplySwapsConfig(t *testing.T) {
	t.Parallel()
	st := storage.NewMemory()
	seed(t, st, pending("a", "alice", at(1, 22, 0)))
	svc := newService(st)
	svc.Apply(Config{DefaultHours: schedule.DayHours{Start: schedule.Clock{Hour: 12}, End: schedule.Clock{Hour: 18}}})

	res, err := svc.Schedule(context.Background(), Request{OwnerID: "alice", TaskIDs: []string{"a"}})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !res.Scheduled[0].Start.Equal(at(0, 12, 0)) {
		t.Fatalf("start = %s", res.Scheduled[0].Start)
	}
}

func TestOwnerLocks(t *testing.T) {
	t.Parallel()
	var l ownerLocks

	unlock, err := l.lock(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.lock(ctx, "alice"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second lock err = %v", err)
	}

	other, err := l.lock(context.Background(), "bob")
	if err != nil {
		t.Fatalf("other owner blocked: %v", err)
	}
	other()
	unlock()

	if n := l.size(); n != 0 {
		t.Fatalf("lock entries leaked: %d", n)
	}
}

func TestScheduleTracesPlacements(t *testing.T) {
	t.Parallel()
	for _, level := range []string{"trace", "info"} {
		t.Run(level, func(t *testing.T) {
			st := storage.NewMemory()
			seed(t, st, pending("a", "alice", at(1, 22, 0)))
			var buf bytes.Buffer
			svc := New(Config{}, st, logx.NewWriter(&buf, level), WithClock(fixedClock))

			if _, err := svc.Schedule(context.Background(), Request{OwnerID: "alice", TaskIDs: []string{"a"}}); err != nil {
				t.Fatalf("Schedule: %v", err)
			}
			traced := strings.Contains(buf.String(), `"message":"task placed"`) && strings.Contains(buf.String(), `"task":"a"`)
			if traced != (level == "trace") {
				t.Fatalf("level %s: traced = %v\n%s", level, traced, buf.String())
			}
		})
	}
}
