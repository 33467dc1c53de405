package email

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/louisbranch/exquisite/internal/notify"
	"github.com/louisbranch/exquisite/internal/notify/render"
)

// Dispatcher delivers game events as email through a Mailer. It implements
// notify.Dispatcher.
type Dispatcher struct {
	mailer  Mailer
	loc     render.Localizer
	limiter *RateLimiter
	// baseURL prefixes play and story links, e.g. "https://stories.example.com".
	baseURL string
	logf    func(format string, args ...any)
}

// DispatcherOption customizes Dispatcher construction.
type DispatcherOption func(*Dispatcher)

// WithBaseURL sets the public URL prefix for play and story links.
func WithBaseURL(baseURL string) DispatcherOption {
	return func(d *Dispatcher) {
		d.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// WithRateLimiter overrides the per-recipient limiter.
func WithRateLimiter(limiter *RateLimiter) DispatcherOption {
	return func(d *Dispatcher) {
		if limiter != nil {
			d.limiter = limiter
		}
	}
}

// WithLocalizer overrides the copy localizer.
func WithLocalizer(loc render.Localizer) DispatcherOption {
	return func(d *Dispatcher) {
		if loc != nil {
			d.loc = loc
		}
	}
}

// WithDispatcherLogger overrides the skip logger.
func WithDispatcherLogger(logf func(format string, args ...any)) DispatcherOption {
	return func(d *Dispatcher) {
		if logf != nil {
			d.logf = logf
		}
	}
}

// NewDispatcher constructs the email dispatcher.
func NewDispatcher(mailer Mailer, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		mailer:  mailer,
		loc:     message.NewPrinter(language.English),
		limiter: NewRateLimiter(defaultRateLimit, defaultRateWindow, nil),
		logf:    log.Printf,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// SendTurnNotification emails the participant whose turn just started.
func (d *Dispatcher) SendTurnNotification(ctx context.Context, event notify.TurnNotification) error {
	if d == nil || d.mailer == nil {
		return ErrMailerNotConfigured
	}
	if err := d.limiter.Allow(strings.ToLower(event.ParticipantEmail)); err != nil {
		return fmt.Errorf("turn notification to %s: %w", event.ParticipantEmail, err)
	}

	out := render.TurnEmail(d.loc, event, d.playURL(event))
	return d.mailer.Send(ctx, Message{
		To:      event.ParticipantEmail,
		Subject: out.Subject,
		Text:    out.BodyText,
	})
}

// SendStoryComplete emails the finished story to every participant. Delivery
// continues past individual failures; the first error is reported.
func (d *Dispatcher) SendStoryComplete(ctx context.Context, event notify.StoryComplete) error {
	if d == nil || d.mailer == nil {
		return ErrMailerNotConfigured
	}

	out := render.CompleteEmail(d.loc, event, d.storyURL(event.GameID))
	var firstErr error
	for _, recipient := range event.ParticipantEmails {
		if err := d.limiter.Allow(strings.ToLower(recipient)); err != nil {
			d.logf("story complete to %s: %v", recipient, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := d.mailer.Send(ctx, Message{
			To:      recipient,
			Subject: out.Subject,
			Text:    out.BodyText,
		}); err != nil {
			d.logf("story complete to %s: %v", recipient, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (d *Dispatcher) playURL(event notify.TurnNotification) string {
	if d.baseURL == "" {
		return ""
	}
	link := fmt.Sprintf("%s/games/%s/participants/%s", d.baseURL, event.GameID, event.ParticipantID)
	if event.AccessGrant != "" {
		link += "?grant=" + url.QueryEscape(event.AccessGrant)
	}
	return link
}

func (d *Dispatcher) storyURL(gameID string) string {
	if d.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/games/%s/story", d.baseURL, gameID)
}
