package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"listingbot/internal/listing"
	"listingbot/internal/transport"
	"listingbot/pkg/logx"
)

// ErrDelivery wraps every failed delivery.
var ErrDelivery = errors.New("notification delivery failed")

const defaultFooter = "Listing Monitor"

type Config struct {
	Footer string
	// RetryMax is the number of extra attempts after a failed send.
	RetryMax int
	// DisablePhotos forces text-only cards.
	DisablePhotos bool
}

type Notifier struct {
	cfg    Config
	sender transport.Sender
	photo  transport.PhotoSender
	log    logx.Logger
}

// New builds a notifier on top of sender. Photo cards are used when sender
// also implements transport.PhotoSender.
func New(cfg Config, sender transport.Sender, log logx.Logger) *Notifier {
	if strings.TrimSpace(cfg.Footer) == "" {
		cfg.Footer = defaultFooter
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	n := &Notifier{cfg: cfg, sender: sender, log: log}
	if ps, ok := sender.(transport.PhotoSender); ok && !cfg.DisablePhotos {
		n.photo = ps
	}
	return n
}

// Deliver posts one product card to target.
func (n *Notifier) Deliver(ctx context.Context, target transport.ChatTarget, s listing.Snapshot) error {
	if n == nil || n.sender == nil {
		return fmt.Errorf("%w: no sender", ErrDelivery)
	}
	if target.IsZero() {
		return fmt.Errorf("%w: no target", ErrDelivery)
	}
	opt := &transport.SendOptions{ParseMode: "HTML", DisablePreview: true}

	if img := strings.TrimSpace(s.Image); img != "" && n.photo != nil {
		if text, ok := caption(s, n.cfg.Footer); ok {
			err := n.retry(ctx, func() error {
				_, err := n.photo.SendPhoto(ctx, target, img, text, opt)
				return err
			})
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %v", ErrDelivery, err)
			}
			// Telegram rejects images it cannot fetch; the text card still goes out.
			n.log.Warn("photo send failed, falling back to text",
				logx.String("id", s.ID),
				logx.Int64("chat_id", target.ChatID),
				logx.Err(err),
			)
		}
	}

	text := Render(s, n.cfg.Footer)
	err := n.retry(ctx, func() error {
		_, err := n.sender.SendText(ctx, target, text, opt)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return nil
}

func (n *Notifier) retry(ctx context.Context, send func() error) error {
	var last error
	for i := 0; i <= n.cfg.RetryMax; i++ {
		if last = send(); last == nil {
			return nil
		}
		if i == n.cfg.RetryMax {
			break
		}
		delay := time.Duration(200+100*i) * time.Millisecond
		n.log.Debug("send retry scheduled", logx.Int("attempt", i+2), logx.Duration("delay", delay), logx.Err(last))
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			tmr.Stop()
			return ctx.Err()
		case <-tmr.C:
		}
	}
	return last
}
