package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"novacal/internal/autoschedule"
	"novacal/internal/identity"
	"novacal/internal/schedule"
	"novacal/internal/storage"
	logx "novacal/pkg/logx"
)

// Handler is the API's http.Handler.
type Handler struct {
	cfg      Config
	sched    Scheduler
	hours    HoursWriter
	resolver identity.Resolver
	limiter  *ownerLimiter
	log      logx.Logger
	mux      *http.ServeMux
}

func NewHandler(cfg Config, sched Scheduler, hours HoursWriter, resolver identity.Resolver, log logx.Logger) *Handler {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &Handler{
		cfg:      cfg,
		sched:    sched,
		hours:    hours,
		resolver: resolver,
		limiter:  newOwnerLimiter(cfg.RatePerMinute, cfg.Burst),
		log:      log,
		mux:      http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.Handle("POST /api/auto-schedule", h.authed(h.autoSchedule))
	h.mux.Handle("GET /api/hours", h.authed(h.getHours))
	h.mux.Handle("PUT /api/hours", h.authed(h.putHours))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rid := r.Header.Get("X-Request-ID")
	if rid == "" {
		rid = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", rid)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	started := time.Now()
	h.mux.ServeHTTP(rec, r)
	h.log.Debug("http request",
		logx.String("request_id", rid),
		logx.String("method", r.Method),
		logx.String("path", r.URL.Path),
		logx.Int("status", rec.status),
		logx.Duration("took", time.Since(started)),
	)
}

// authed resolves the bearer token and applies the per-owner rate limit.
func (h *Handler) authed(next func(http.ResponseWriter, *http.Request, string)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, err := h.resolver.Resolve(r.Context(), identity.BearerToken(r))
		if err != nil {
			if errors.Is(err, identity.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, err)
				return
			}
			h.log.Error("identity lookup failed", logx.Err(err))
			writeError(w, http.StatusInternalServerError, errors.New("identity lookup failed"))
			return
		}
		if !h.limiter.Allow(owner) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, ErrRateLimited)
			return
		}
		next(w, r, owner)
	})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) autoSchedule(w http.ResponseWriter, r *http.Request, owner string) {
	var body scheduleRequest
	if err := h.decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.TaskIDs == nil {
		writeError(w, http.StatusBadRequest, errors.New("task_ids is required"))
		return
	}

	res, err := h.sched.Schedule(r.Context(), autoschedule.Request{
		OwnerID: owner,
		TaskIDs: body.TaskIDs,
		Trigger: autoschedule.TriggerAPI,
	})
	var ce *schedule.CommitError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toResponse(res))
	case errors.Is(err, autoschedule.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, autoschedule.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, autoschedule.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.As(err, &ce):
		h.log.Error("auto-schedule commit aborted", logx.String("owner", owner), logx.Err(err))
		writeJSON(w, http.StatusInternalServerError, commitErrorResponse{
			Error:            err.Error(),
			scheduleResponse: toResponse(res),
			Failed:           nonNil(res.Failed),
		})
	default:
		h.log.Error("auto-schedule failed", logx.String("owner", owner), logx.Err(err))
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (h *Handler) getHours(w http.ResponseWriter, r *http.Request, owner string) {
	week, err := h.sched.Hours(r.Context(), owner)
	if err != nil {
		h.log.Error("load working hours failed", logx.String("owner", owner), logx.Err(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, weekJSON(week))
}

func (h *Handler) putHours(w http.ResponseWriter, r *http.Request, owner string) {
	var body []hoursJSON
	if err := h.decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rows, err := parseHours(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.hours.PutWorkingHours(r.Context(), owner, rows); err != nil {
		h.log.Error("save working hours failed", logx.String("owner", owner), logx.Err(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.log.Info("working hours updated", logx.String("owner", owner), logx.Int("days", len(rows)))
	h.getHours(w, r, owner)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed body: %w", err)
	}
	return nil
}

func parseHours(in []hoursJSON) ([]storage.WorkingHours, error) {
	if len(in) == 0 {
		return nil, errors.New("at least one day is required")
	}
	seen := map[time.Weekday]bool{}
	out := make([]storage.WorkingHours, 0, len(in))
	for _, item := range in {
		day, err := schedule.ParseWeekday(item.Day)
		if err != nil {
			return nil, err
		}
		if seen[day] {
			return nil, fmt.Errorf("duplicate day %s", day)
		}
		seen[day] = true
		start, err := schedule.ParseClock(item.Start)
		if err != nil {
			return nil, fmt.Errorf("%s start: %w", day, err)
		}
		end, err := schedule.ParseClock(item.End)
		if err != nil {
			return nil, fmt.Errorf("%s end: %w", day, err)
		}
		if err := (schedule.DayHours{Start: start, End: end}).Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", day, err)
		}
		out = append(out, storage.WorkingHours{Day: day, Start: start, End: end})
	}
	return out, nil
}

func weekJSON(week schedule.WeeklyHours) []hoursJSON {
	out := make([]hoursJSON, 0, 7)
	// Monday first, as users read a week.
	for i := 1; i <= 7; i++ {
		d := time.Weekday(i % 7)
		out = append(out, hoursJSON{Day: d.String(), Start: week[d].Start.String(), End: week[d].End.String()})
	}
	return out
}

func toResponse(res autoschedule.Result) scheduleResponse {
	out := scheduleResponse{
		Scheduled:     placements(res.Scheduled),
		Unschedulable: nonNil(res.Unschedulable),
		Missing:       nonNil(res.Missing),
	}
	if len(res.Reasons) > 0 {
		out.Reasons = make(map[string]string, len(res.Reasons))
		for id, r := range res.Reasons {
			out.Reasons[id] = string(r)
		}
	}
	return out
}

func placements(in []schedule.Placement) []placementJSON {
	out := make([]placementJSON, 0, len(in))
	for _, p := range in {
		out = append(out, placementJSON{ID: p.ID, Start: p.Start.UTC(), End: p.End.UTC()})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
