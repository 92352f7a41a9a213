package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"novacal/internal/identity"
	"novacal/internal/storage"
	logx "novacal/pkg/logx"
)

// sharedStore keeps one memory store alive across commands.
type sharedStore struct{ storage.Store }

func (sharedStore) Close() error { return nil }

func setup(t *testing.T) (storage.Store, func(args ...string) (string, error)) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  driver: memory\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	mem := storage.NewMemory()
	orig := openStore
	openStore = func(storage.Config, logx.Logger) (storage.Store, error) { return sharedStore{mem}, nil }
	t.Cleanup(func() { openStore = orig })

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		app := newApp()
		app.Writer = &out
		app.ErrWriter = &out
		err := app.Run(append([]string{"novacalctl", "--config", path}, args...))
		return out.String(), err
	}
	return mem, run
}

func TestAddTaskAndList(t *testing.T) {
	mem, run := setup(t)

	out, err := run("add-task", "--owner", "alice", "--start", "2030-01-07T09:00:00Z", "--duration", "45m", "--auto", "write", "report")
	if err != nil {
		t.Fatalf("add-task: %v", err)
	}
	id := strings.TrimSpace(out)
	if id == "" {
		t.Fatalf("no id printed")
	}

	tasks, err := mem.ListTasks(context.Background(), "alice")
	if err != nil || len(tasks) != 1 {
		t.Fatalf("tasks = %v, err = %v", tasks, err)
	}
	got := tasks[0]
	if got.Title != "write report" || !got.AutoSchedule || got.Duration() != 45*time.Minute {
		t.Fatalf("task = %+v", got)
	}

	out, err = run("list", "--owner", "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "write report") {
		t.Fatalf("list output missing task:\n%s", out)
	}
}

func TestAddTaskRequiresOwner(t *testing.T) {
	_, run := setup(t)
	if _, err := run("add-task", "title"); err == nil {
		t.Fatalf("expected error without --owner")
	}
}

func TestSetHours(t *testing.T) {
	mem, run := setup(t)
	if _, err := run("set-hours", "--owner", "bob", "tue", "09:30", "17:00"); err != nil {
		t.Fatalf("set-hours: %v", err)
	}
	hours, err := mem.WorkingHours(context.Background(), "bob")
	if err != nil || len(hours) != 1 {
		t.Fatalf("hours = %v, err = %v", hours, err)
	}
	if hours[0].Day != time.Tuesday || hours[0].Start.String() != "09:30" || hours[0].End.String() != "17:00" {
		t.Fatalf("hours = %+v", hours[0])
	}

	if _, err := run("set-hours", "--owner", "bob", "tue", "18:00", "09:00"); err == nil {
		t.Fatalf("expected error for inverted window")
	}
}

func TestScheduleDryRun(t *testing.T) {
	mem, run := setup(t)
	out, err := run("add-task", "--owner", "carol", "--start", "2020-01-01T10:00:00Z", "--due", "2099-01-01T00:00:00Z", "--auto", "plan")
	if err != nil {
		t.Fatalf("add-task: %v", err)
	}
	id := strings.TrimSpace(out)
	before, _ := mem.TasksByIDs(context.Background(), "carol", []string{id})

	out, err = run("schedule", "--owner", "carol", "--dry-run", id, "nope")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !strings.Contains(out, "placed  "+id) || !strings.Contains(out, "missing nope") {
		t.Fatalf("schedule output:\n%s", out)
	}
	after, _ := mem.TasksByIDs(context.Background(), "carol", []string{id})
	if !after[0].Start.Equal(before[0].Start) {
		t.Fatalf("dry run moved the task")
	}
}

func TestIssueToken(t *testing.T) {
	mem, run := setup(t)
	out, err := run("token", "--owner", "dave")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	tok := strings.TrimSpace(out)
	owner, ok, err := mem.OwnerByTokenHash(context.Background(), identity.HashToken(tok))
	if err != nil || !ok || owner != "dave" {
		t.Fatalf("owner = %q ok = %v err = %v", owner, ok, err)
	}
}
