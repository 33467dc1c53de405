package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "email.turn.subject", defaultTurnSubject)
	message.SetString(lang, "email.turn.subject_titled", "It's your turn in \"%s\"")
	message.SetString(lang, "email.turn.intro", "The story \"%s\" is waiting for you. You hold turn %d of %d.")
	message.SetString(lang, "email.turn.previous", "The last sentence reads:\n\n  %s")
	message.SetString(lang, "email.turn.opening", "You write the opening sentence. Start wherever you like.")
	message.SetString(lang, "email.turn.link", "Write your sentence here: %s")

	message.SetString(lang, "email.complete.subject", defaultCompleteSubject)
	message.SetString(lang, "email.complete.subject_titled", "\"%s\" is finished")
	message.SetString(lang, "email.complete.intro", "Every sentence of \"%s\" is in. Here is the whole story:")
	message.SetString(lang, "email.complete.link", "Read it online: %s")
}
