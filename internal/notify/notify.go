// Package notify defines the fire-and-forget notification boundary invoked
// when a turn is accepted or a story completes.
package notify

import "context"

// StorySentence is one ordered story line inside a completion event.
type StorySentence struct {
	TurnNumber  int
	AuthorEmail string
	Text        string
}

// TurnNotification tells the next participant their turn started.
type TurnNotification struct {
	GameID           string
	GameTitle        string
	ParticipantID    string
	ParticipantEmail string
	// PreviousText is the sentence the recipient continues from.
	PreviousText    string
	TurnNumber      int
	MaxParticipants int
	// AccessGrant is an optional capability token for the play link.
	AccessGrant string
}

// StoryComplete tells every participant the finished story.
type StoryComplete struct {
	GameID            string
	GameTitle         string
	Sentences         []StorySentence
	ParticipantEmails []string
}

// Dispatcher delivers game events to a messaging collaborator.
//
// Delivery failures never block or roll back game progress; callers log and
// move on.
type Dispatcher interface {
	SendTurnNotification(ctx context.Context, event TurnNotification) error
	SendStoryComplete(ctx context.Context, event StoryComplete) error
}

// NopDispatcher drops every event. It keeps games progressing when no
// messaging collaborator is configured.
type NopDispatcher struct{}

// SendTurnNotification implements Dispatcher.
func (NopDispatcher) SendTurnNotification(context.Context, TurnNotification) error { return nil }

// SendStoryComplete implements Dispatcher.
func (NopDispatcher) SendStoryComplete(context.Context, StoryComplete) error { return nil }
