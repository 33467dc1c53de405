// Package render produces localized email copy for game notifications.
package render

import (
	"fmt"
	"strings"

	"golang.org/x/text/message"

	"github.com/louisbranch/exquisite/internal/notify"
)

const (
	defaultTurnSubject     = "It's your turn"
	defaultCompleteSubject = "Your story is finished"
)

// Output is localized email copy for one notification event.
type Output struct {
	Subject  string
	BodyText string
}

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// TurnEmail renders the "your turn" email for one participant.
func TurnEmail(loc Localizer, event notify.TurnNotification, playURL string) Output {
	subject := localizeWithFallback(loc, "email.turn.subject", defaultTurnSubject)
	if title := strings.TrimSpace(event.GameTitle); title != "" {
		subject = localize(loc, "email.turn.subject_titled", title)
		if subject == "email.turn.subject_titled" {
			subject = fmt.Sprintf("%s: %s", defaultTurnSubject, title)
		}
	}

	var body strings.Builder
	body.WriteString(localize(loc, "email.turn.intro", event.GameTitle, event.TurnNumber, event.MaxParticipants))
	body.WriteString("\n\n")
	if text := strings.TrimSpace(event.PreviousText); text != "" {
		body.WriteString(localize(loc, "email.turn.previous", text))
		body.WriteString("\n\n")
	} else {
		body.WriteString(localize(loc, "email.turn.opening"))
		body.WriteString("\n\n")
	}
	if playURL != "" {
		body.WriteString(localize(loc, "email.turn.link", playURL))
		body.WriteString("\n")
	}

	return Output{Subject: subject, BodyText: body.String()}
}

// CompleteEmail renders the finished-story email sent to every participant.
func CompleteEmail(loc Localizer, event notify.StoryComplete, storyURL string) Output {
	subject := localizeWithFallback(loc, "email.complete.subject", defaultCompleteSubject)
	if title := strings.TrimSpace(event.GameTitle); title != "" {
		subject = localize(loc, "email.complete.subject_titled", title)
		if subject == "email.complete.subject_titled" {
			subject = fmt.Sprintf("%s: %s", defaultCompleteSubject, title)
		}
	}

	var body strings.Builder
	body.WriteString(localize(loc, "email.complete.intro", event.GameTitle))
	body.WriteString("\n\n")
	for _, sentence := range event.Sentences {
		body.WriteString(sentence.Text)
		body.WriteString("\n")
	}
	if storyURL != "" {
		body.WriteString("\n")
		body.WriteString(localize(loc, "email.complete.link", storyURL))
		body.WriteString("\n")
	}

	return Output{Subject: subject, BodyText: body.String()}
}

func localize(loc Localizer, key message.Reference, args ...any) string {
	if loc == nil {
		if asString, ok := key.(string); ok {
			return asString
		}
		return ""
	}
	return loc.Sprintf(key, args...)
}

func localizeWithFallback(loc Localizer, key string, fallback string) string {
	value := strings.TrimSpace(localize(loc, key))
	if value == "" || value == key {
		return fallback
	}
	return value
}
