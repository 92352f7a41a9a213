package notifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"novacal/internal/eventbus"
	rtsup "novacal/internal/runtime/supervisor"
	logx "novacal/pkg/logx"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
	ErrNoChat    = errors.New("owner has no chat mapping")
)

// Config controls delivery.
type Config struct {
	Enabled bool
	// Chats maps owner id to Telegram chat id.
	Chats      map[string]int64
	QueueSize  int
	RatePerSec int
	RetryMax   int
	RetryBase  time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 128
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 1
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	return c
}

// Sender delivers one text message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

type message struct {
	chatID int64
	text   string
}

type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
	sender  Sender
	bus     eventbus.Bus
	log     logx.Logger
	queue   chan message
	sup     *rtsup.Supervisor
}

func New(cfg Config, sender Sender, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{sender: sender, bus: bus, log: log}
	s.Apply(cfg)
	return s
}

// Apply swaps chat mapping and limits. Queue size changes take effect on the next Start.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	s.mu.Unlock()
}

// Start subscribes to pass events and starts the delivery worker. It is a no-op when disabled.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil || !s.cfg.Enabled || s.sender == nil {
		return
	}
	s.queue = make(chan message, s.cfg.QueueSize)
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	q := s.queue
	s.sup.GoRestart("notifier.worker", func(c context.Context) error {
		s.worker(c, q)
		return c.Err()
	}, 0, 0)
	if s.bus != nil {
		events, unsub := s.bus.Subscribe(64)
		s.sup.Go("notifier.events", func(c context.Context) error {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return nil
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					s.handle(c, ev)
				}
			}
		})
	}
	s.log.Info("notifier started", logx.Int("chats", len(s.cfg.Chats)))
}

// Stop halts intake and waits for the worker up to ctx. Queued messages are dropped.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.queue = nil
	s.mu.Unlock()
	if sup == nil {
		return
	}
	if err := sup.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("notifier stop", logx.Err(err))
	}
	s.log.Info("notifier stopped")
}

func (s *Service) handle(ctx context.Context, ev eventbus.Event) {
	if ev.Type != eventbus.TypePassCompleted {
		return
	}
	sum, ok := ev.Data.(eventbus.PassSummary)
	if !ok {
		return
	}
	text := FormatSummary(sum)
	if text == "" {
		return
	}
	if err := s.Notify(ctx, sum.OwnerID, text); err != nil && !errors.Is(err, ErrNoChat) {
		s.log.Warn("notify enqueue failed", logx.String("owner", sum.OwnerID), logx.Err(err))
	}
}

// Notify queues text for ownerID's chat.
func (s *Service) Notify(ctx context.Context, ownerID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	enabled := s.cfg.Enabled
	chat, mapped := s.cfg.Chats[ownerID]
	q := s.queue
	s.mu.Unlock()

	switch {
	case !enabled || q == nil:
		return ErrDisabled
	case !mapped:
		return ErrNoChat
	}
	select {
	case q <- message{chatID: chat, text: text}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Service) worker(ctx context.Context, q <-chan message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-q:
			s.deliver(ctx, m)
		}
	}
}

func (s *Service) deliver(ctx context.Context, m message) {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	var err error
	for attempt := 0; attempt <= cfg.RetryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay(cfg.RetryBase, attempt)):
			}
		}
		if werr := lim.Wait(ctx); werr != nil {
			return
		}
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = s.sender.Send(callCtx, m.chatID, m.text)
		cancel()
		if err == nil {
			return
		}
		s.log.Debug("notify send failed", logx.Err(err), logx.Int("attempt", attempt+1))
	}
	s.log.Warn("notify dropped", logx.Int64("chat", m.chatID), logx.Err(err))
}

// retryDelay is base * 2^(attempt-1) with 0.7..1.3 jitter, capped at 10s.
func retryDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt && d < 10*time.Second; i++ {
		d *= 2
	}
	d = min(d, 10*time.Second)
	return time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
}

// FormatSummary renders a pass summary. It returns "" when there is nothing to report.
func FormatSummary(sum eventbus.PassSummary) string {
	if len(sum.Unschedulable) == 0 && len(sum.Failed) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Auto-schedule (%s): %d placed", sum.Trigger, sum.Scheduled)
	if n := len(sum.Unschedulable); n > 0 {
		fmt.Fprintf(&b, ", %d could not be placed before their deadline: %s", n, strings.Join(sum.Unschedulable, ", "))
	}
	if n := len(sum.Failed); n > 0 {
		fmt.Fprintf(&b, ". %d were not saved: %s", n, strings.Join(sum.Failed, ", "))
	}
	if sum.Err != "" {
		fmt.Fprintf(&b, " (%s)", sum.Err)
	}
	return b.String()
}
