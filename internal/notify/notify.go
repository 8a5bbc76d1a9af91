// Package notify delivers operator notifications to a Telegram chat.
//
// It is the delivery end of the logx notifier sink: WARN+ log lines are
// enqueued here and a single worker pushes them out rate-limited. The
// scheduler must never block on Telegram, so the queue drops when full.
package notify

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	logx "listingd/pkg/logx"
)

var ErrDisabled = errors.New("notifier disabled")

type Config struct {
	Enabled    bool
	Token      string
	ChatID     int64
	ThreadID   int
	RatePerSec int
	QueueSize  int
}

type Service struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	queue   chan string
	limiter *rate.Limiter

	// dropped counts messages lost to a full queue, logged periodically
	// instead of per message.
	dropped uint64
}

func New(cfg Config, log logx.Logger) (*Service, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("notify: telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("notify: chat_id is not set")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}

	qs := cfg.QueueSize
	if qs <= 0 {
		qs = 256
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}

	return &Service{
		cfg:     cfg,
		log:     log,
		bot:     bot,
		queue:   make(chan string, qs),
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Enqueue implements logx.Sender. It never blocks; when the queue is full
// the message is dropped and counted.
func (s *Service) Enqueue(msg string) {
	select {
	case s.queue <- msg:
	default:
		atomic.AddUint64(&s.dropped, 1)
	}
}

// Run drains the queue until ctx is canceled. Run it under the supervisor.
func (s *Service) Run(ctx context.Context) error {
	lastDropReport := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-s.queue:
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			s.send(msg)
		}

		if d := atomic.SwapUint64(&s.dropped, 0); d > 0 && time.Since(lastDropReport) > time.Minute {
			lastDropReport = time.Now()
			s.log.Warn("notifications dropped (queue full)", logx.Int64("count", int64(d)))
		}
	}
}

func (s *Service) send(msg string) {
	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if s.cfg.ThreadID != 0 {
		opts.ThreadID = s.cfg.ThreadID
	}
	if _, err := s.bot.Send(tele.ChatID(s.cfg.ChatID), msg, opts); err != nil {
		// Best-effort channel; a failed push is a console line, nothing more.
		s.log.Debug("notification send failed", logx.Err(err))
	}
}
