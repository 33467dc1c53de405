package email

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/exquisite/internal/notify"
)

type fakeMailer struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func (m *fakeMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *fakeMailer) sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}

func TestSendTurnNotification_DeliversRenderedEmail(t *testing.T) {
	t.Parallel()

	mailer := &fakeMailer{}
	dispatcher := NewDispatcher(mailer,
		WithBaseURL("https://stories.example.com/"),
		WithDispatcherLogger(func(string, ...any) {}),
	)

	err := dispatcher.SendTurnNotification(context.Background(), notify.TurnNotification{
		GameID:           "game-1",
		GameTitle:        "The Midnight Train",
		ParticipantID:    "part-2",
		ParticipantEmail: "second@example.com",
		PreviousText:     "The train left the station.",
		TurnNumber:       2,
		MaxParticipants:  3,
		AccessGrant:      "token-123",
	})
	if err != nil {
		t.Fatalf("send turn notification: %v", err)
	}

	sent := mailer.sent()
	if len(sent) != 1 {
		t.Fatalf("messages = %d, want 1", len(sent))
	}
	msg := sent[0]
	if msg.To != "second@example.com" {
		t.Fatalf("To = %q", msg.To)
	}
	if !strings.Contains(msg.Text, "https://stories.example.com/games/game-1/participants/part-2?grant=token-123") {
		t.Fatalf("body missing granted play link: %q", msg.Text)
	}
}

func TestSendStoryComplete_EmailsEveryParticipant(t *testing.T) {
	t.Parallel()

	mailer := &fakeMailer{}
	dispatcher := NewDispatcher(mailer,
		WithBaseURL("https://stories.example.com"),
		WithDispatcherLogger(func(string, ...any) {}),
	)

	err := dispatcher.SendStoryComplete(context.Background(), notify.StoryComplete{
		GameID:    "game-1",
		GameTitle: "The Midnight Train",
		Sentences: []notify.StorySentence{
			{TurnNumber: 1, Text: "First."},
			{TurnNumber: 2, Text: "Last."},
		},
		ParticipantEmails: []string{"host@example.com", "second@example.com"},
	})
	if err != nil {
		t.Fatalf("send story complete: %v", err)
	}

	sent := mailer.sent()
	if len(sent) != 2 {
		t.Fatalf("messages = %d, want 2", len(sent))
	}
	for _, msg := range sent {
		if !strings.Contains(msg.Text, "https://stories.example.com/games/game-1/story") {
			t.Fatalf("body missing story link: %q", msg.Text)
		}
	}
}

func TestSendTurnNotification_RateLimited(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	mailer := &fakeMailer{}
	dispatcher := NewDispatcher(mailer,
		WithRateLimiter(NewRateLimiter(1, time.Hour, func() time.Time { return now })),
		WithDispatcherLogger(func(string, ...any) {}),
	)

	event := notify.TurnNotification{ParticipantEmail: "second@example.com", TurnNumber: 2, MaxParticipants: 3}
	if err := dispatcher.SendTurnNotification(context.Background(), event); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := dispatcher.SendTurnNotification(context.Background(), event); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("second send err = %v, want ErrRateLimited", err)
	}
	if got := len(mailer.sent()); got != 1 {
		t.Fatalf("messages = %d, want 1", got)
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	limiter := NewRateLimiter(2, time.Hour, clock)

	if err := limiter.Allow("a@example.com"); err != nil {
		t.Fatalf("first allow: %v", err)
	}
	if err := limiter.Allow("a@example.com"); err != nil {
		t.Fatalf("second allow: %v", err)
	}
	if err := limiter.Allow("a@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("third allow err = %v, want ErrRateLimited", err)
	}
	// Other recipients keep their own budget.
	if err := limiter.Allow("b@example.com"); err != nil {
		t.Fatalf("other recipient: %v", err)
	}

	now = now.Add(time.Hour + time.Minute)
	if err := limiter.Allow("a@example.com"); err != nil {
		t.Fatalf("allow after window: %v", err)
	}
}
