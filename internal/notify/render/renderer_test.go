package render

import (
	"strings"
	"testing"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/louisbranch/exquisite/internal/notify"
)

func TestTurnEmail_EnglishCopy(t *testing.T) {
	t.Parallel()

	loc := message.NewPrinter(language.English)
	out := TurnEmail(loc, notify.TurnNotification{
		GameTitle:       "The Midnight Train",
		TurnNumber:      2,
		MaxParticipants: 3,
		PreviousText:    "The train left the station.",
	}, "https://example.com/play")

	if !strings.Contains(out.Subject, "The Midnight Train") {
		t.Fatalf("subject = %q, want the game title", out.Subject)
	}
	if !strings.Contains(out.BodyText, "turn 2 of 3") {
		t.Fatalf("body missing turn counter: %q", out.BodyText)
	}
	if !strings.Contains(out.BodyText, "The train left the station.") {
		t.Fatalf("body missing previous sentence: %q", out.BodyText)
	}
	if !strings.Contains(out.BodyText, "https://example.com/play") {
		t.Fatalf("body missing play link: %q", out.BodyText)
	}
}

func TestTurnEmail_OpeningTurnHasNoQuote(t *testing.T) {
	t.Parallel()

	loc := message.NewPrinter(language.English)
	out := TurnEmail(loc, notify.TurnNotification{
		GameTitle:       "Cold Open",
		TurnNumber:      1,
		MaxParticipants: 2,
	}, "")

	if !strings.Contains(out.BodyText, "opening sentence") {
		t.Fatalf("body missing opening instruction: %q", out.BodyText)
	}
	if strings.Contains(out.BodyText, "last sentence reads") {
		t.Fatalf("body must not quote an absent sentence: %q", out.BodyText)
	}
}

func TestCompleteEmail_ListsEverySentenceInOrder(t *testing.T) {
	t.Parallel()

	loc := message.NewPrinter(language.English)
	out := CompleteEmail(loc, notify.StoryComplete{
		GameTitle: "The Midnight Train",
		Sentences: []notify.StorySentence{
			{TurnNumber: 1, Text: "First."},
			{TurnNumber: 2, Text: "Second."},
		},
	}, "https://example.com/story")

	if !strings.Contains(out.Subject, "finished") {
		t.Fatalf("subject = %q", out.Subject)
	}
	first := strings.Index(out.BodyText, "First.")
	second := strings.Index(out.BodyText, "Second.")
	if first < 0 || second < 0 || second < first {
		t.Fatalf("sentences missing or out of order: %q", out.BodyText)
	}
}

func TestRender_NilLocalizerFallsBack(t *testing.T) {
	t.Parallel()

	out := TurnEmail(nil, notify.TurnNotification{TurnNumber: 1, MaxParticipants: 2}, "")
	if out.Subject != defaultTurnSubject {
		t.Fatalf("subject = %q, want fallback", out.Subject)
	}
}
