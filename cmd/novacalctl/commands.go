package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"

	"novacal/internal/autoschedule"
	"novacal/internal/gcal"
	"novacal/internal/identity"
	"novacal/internal/schedule"
	"novacal/internal/storage"
)

var (
	addTaskFlags = []cli.Flag{
		ownerFlag,
		cli.StringFlag{Name: "start", Usage: "start time (RFC 3339); defaults to now"},
		cli.DurationFlag{Name: "duration, d", Value: 30 * time.Minute, Usage: "task length"},
		cli.StringFlag{Name: "due", Usage: "deadline (RFC 3339); defaults to the end of the start day"},
		cli.IntFlag{Name: "importance, i", Value: 0, Usage: "higher is placed first among equal deadlines"},
		cli.BoolFlag{Name: "auto", Usage: "mark the task for auto-scheduling"},
		cli.StringFlag{Name: "description", Usage: "free-form notes"},
	}
	scheduleFlags = []cli.Flag{
		ownerFlag,
		cli.BoolFlag{Name: "dry-run, n", Usage: "print placements without saving them"},
	}
)

func addTask(c *cli.Context) error {
	title := strings.TrimSpace(strings.Join(c.Args(), " "))
	if title == "" {
		return cli.NewExitError("a title is required", 2)
	}
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	start := time.Now().UTC().Truncate(time.Minute)
	if s := c.String("start"); s != "" {
		if start, err = time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("--start: %w", err)
		}
	}
	d := c.Duration("duration")
	if d <= 0 {
		return errors.New("--duration must be positive")
	}
	t := schedule.Task{
		OwnerID:      owner,
		Title:        title,
		Description:  c.String("description"),
		Start:        start.UTC(),
		End:          start.UTC().Add(d),
		Importance:   c.Int("importance"),
		AutoSchedule: c.Bool("auto"),
	}
	if s := c.String("due"); s != "" {
		due, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("--due: %w", err)
		}
		t.Due = due.UTC()
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()
	created, err := e.store.CreateTask(context.Background(), t)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, created.ID)
	return nil
}

func list(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()
	tasks, err := e.store.ListTasks(context.Background(), owner)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(c.App.Writer, "no tasks")
		return nil
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTART\tEND\tDUE\tIMP\tAUTO\tDONE")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%t\t%t\n",
			t.ID, t.Title,
			t.Start.Format(time.RFC3339), t.End.Format(time.RFC3339), t.EffectiveDeadline().Format(time.RFC3339),
			t.Importance, t.AutoSchedule, t.Completed)
	}
	return tw.Flush()
}

func setHours(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	if c.NArg() != 3 {
		return cli.NewExitError("usage: set-hours --owner id <weekday> <HH:MM> <HH:MM>", 2)
	}
	day, err := schedule.ParseWeekday(c.Args().Get(0))
	if err != nil {
		return err
	}
	start, err := schedule.ParseClock(c.Args().Get(1))
	if err != nil {
		return err
	}
	end, err := schedule.ParseClock(c.Args().Get(2))
	if err != nil {
		return err
	}
	if err := (schedule.DayHours{Start: start, End: end}).Validate(); err != nil {
		return err
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.store.PutWorkingHours(context.Background(), owner, []storage.WorkingHours{{Day: day, Start: start, End: end}}); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s %s %s-%s\n", owner, day, start, end)
	return nil
}

func runSchedule(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	loc, err := e.cfg.Schedule.Location()
	if err != nil {
		return err
	}
	hours, err := e.cfg.Schedule.DefaultHours()
	if err != nil {
		return err
	}
	svc := autoschedule.New(autoschedule.Config{
		Location:       loc,
		DefaultHours:   hours,
		MaxBatch:       e.cfg.Schedule.MaxBatch,
		MaxHorizonDays: e.cfg.Schedule.MaxHorizonDays,
	}, e.store, e.log)

	res, err := svc.Schedule(context.Background(), autoschedule.Request{
		OwnerID: owner,
		TaskIDs: c.Args(),
		Trigger: autoschedule.TriggerCLI,
		DryRun:  c.Bool("dry-run"),
	})
	printResult(c, res, loc)
	return err
}

func printResult(c *cli.Context, res autoschedule.Result, loc *time.Location) {
	w := c.App.Writer
	for _, p := range res.Scheduled {
		fmt.Fprintf(w, "placed  %s  %s - %s\n", p.ID, p.Start.In(loc).Format("Mon 2006-01-02 15:04"), p.End.In(loc).Format("15:04"))
	}
	for _, id := range res.Unschedulable {
		reason := res.Reasons[id]
		if reason == "" {
			reason = schedule.ReasonNoSlot
		}
		fmt.Fprintf(w, "skipped %s  (%s)\n", id, reason)
	}
	for _, id := range res.Failed {
		fmt.Fprintf(w, "failed  %s\n", id)
	}
	for _, id := range res.Missing {
		fmt.Fprintf(w, "missing %s\n", id)
	}
}

func issueToken(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.store.PutToken(context.Background(), identity.HashToken(token), owner); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}

func gcalAuth(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()
	gc := e.cfg.GoogleCalendar
	if gc == nil || gc.CredentialsFile == "" || gc.TokenFile == "" {
		return errors.New("google_calendar.credentials_file and token_file must be configured")
	}
	oc, err := gcal.OAuthConfig(gc.CredentialsFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Open this URL, grant access and paste the code:\n\n%s\n\ncode: ", gcal.AuthCodeURL(oc, "novacal"))
	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	tok, err := oc.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}
	if err := gcal.SaveToken(gc.TokenFile, tok); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "saved", gc.TokenFile)
	return nil
}
