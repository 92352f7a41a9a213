// Package gcal reads busy intervals from Google Calendar free/busy.
//
// It is an optional busy source for the scheduler: an owner's mapped calendars
// are queried for the pass's range and every busy period blocks placement.
package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"novacal/internal/schedule"
	logx "novacal/pkg/logx"
)

// Config maps owners to the Google calendars consulted for them.
type Config struct {
	CredentialsFile string
	TokenFile       string
	// Calendars maps owner id to calendar ids ("primary" is allowed).
	Calendars map[string][]string
	Timeout   time.Duration
}

var errNoCredentials = errors.New("gcal: credentials_file is required")

// Source implements autoschedule.BusySource.
type Source struct {
	srv       *calendar.Service
	calendars map[string][]string
	timeout   time.Duration
	log       logx.Logger
}

// OAuthConfig reads an installed-app client secret for read-only calendar access.
func OAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	if credentialsFile == "" {
		return nil, errNoCredentials
	}
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secret %s: %w", credentialsFile, err)
	}
	cfg, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secret: %w", err)
	}
	return cfg, nil
}

// New builds a Source from an OAuth client secret and a saved token.
func New(ctx context.Context, cfg Config, log logx.Logger) (*Source, error) {
	oc, err := OAuthConfig(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	return NewWithClient(ctx, cfg, oc.Client(ctx, tok), log)
}

// NewWithClient builds a Source over an already authorized client.
func NewWithClient(ctx context.Context, cfg Config, hc *http.Client, log logx.Logger, opts ...option.ClientOption) (*Source, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Source{srv: srv, calendars: cfg.Calendars, timeout: timeout, log: log}, nil
}

func (s *Source) Name() string { return "google_calendar" }

// Busy returns ownerID's busy periods in [from, to). Owners without mapped calendars have none.
func (s *Source) Busy(ctx context.Context, ownerID string, from, to time.Time) ([]schedule.Interval, error) {
	ids := s.calendars[ownerID]
	if len(ids) == 0 {
		return nil, nil
	}
	req := &calendar.FreeBusyRequest{
		TimeMin: from.UTC().Format(time.RFC3339),
		TimeMax: to.UTC().Format(time.RFC3339),
		Items:   make([]*calendar.FreeBusyRequestItem, 0, len(ids)),
	}
	for _, id := range ids {
		req.Items = append(req.Items, &calendar.FreeBusyRequestItem{Id: id})
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, err := s.srv.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}
	ivs, err := busyIntervals(resp, ids)
	if err != nil {
		return nil, err
	}
	s.log.Debug("freebusy loaded", logx.String("owner", ownerID), logx.Int("intervals", len(ivs)))
	return ivs, nil
}

func busyIntervals(resp *calendar.FreeBusyResponse, ids []string) ([]schedule.Interval, error) {
	var out []schedule.Interval
	for _, id := range ids {
		cal, ok := resp.Calendars[id]
		if !ok {
			continue
		}
		if len(cal.Errors) > 0 {
			return nil, fmt.Errorf("calendar %s: %s", id, cal.Errors[0].Reason)
		}
		for _, p := range cal.Busy {
			start, err := time.Parse(time.RFC3339, p.Start)
			if err != nil {
				return nil, fmt.Errorf("calendar %s: busy start: %w", id, err)
			}
			end, err := time.Parse(time.RFC3339, p.End)
			if err != nil {
				return nil, fmt.Errorf("calendar %s: busy end: %w", id, err)
			}
			iv := schedule.Interval{Start: start.UTC(), End: end.UTC()}
			if !iv.Empty() {
				out = append(out, iv)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// LoadToken reads an oauth2 token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token file %s: %w", path, err)
	}
	return tok, nil
}

// SaveToken writes tok to path with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// AuthCodeURL returns the consent URL for an offline (refreshable) token.
func AuthCodeURL(cfg *oauth2.Config, state string) string {
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}
