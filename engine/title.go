package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"pchat/model"
)

const titlePrompt = "Generate a short title of 2 to 5 words for a conversation that starts with the exchange below. Reply with the title only.\n\nUser: %s\n\nAssistant: %s"

// titleMaxTokens bounds the title call; a few words never need more.
const titleMaxTokens = 32

// titleExcerpt caps how much of each message is quoted in the title prompt.
const titleExcerpt = 2000

var (
	titleQuotes = strings.NewReplacer(`"`, "", "'", "", "`", "", "“", "", "”", "", "‘", "", "’", "")
	titleWord   = regexp.MustCompile(`\b[Tt]itle\b`)
)

// CleanTitle strips quote characters and the standalone word "title"/"Title"
// from a generated title and returns its first non-empty line, trimmed of
// surrounding punctuation.
func CleanTitle(raw string) string {
	t := titleWord.ReplaceAllString(titleQuotes.Replace(raw), "")
	for _, line := range strings.Split(t, "\n") {
		line = strings.Trim(strings.Join(strings.Fields(line), " "), " :-*#.")
		if line != "" {
			return line
		}
	}
	return ""
}

// generateTitle asks the provider for a title from the first exchange.
func generateTitle(ctx context.Context, p model.Provider, settings model.Settings, history model.History) (string, error) {
	user, assistant, ok := history.FirstExchange()
	if !ok {
		return "", &TitleGenerationError{Err: fmt.Errorf("conversation has no complete exchange")}
	}

	req := model.Request{
		Model:     settings.Model,
		MaxTokens: titleMaxTokens,
		Messages: []model.Message{{
			Role: model.RoleUser,
			Text: fmt.Sprintf(titlePrompt, excerpt(user.PlainText()), excerpt(assistant.PlainText())),
		}},
	}

	reply, err := p.Complete(ctx, req)
	if err != nil {
		return "", &TitleGenerationError{Err: err}
	}
	return CleanTitle(reply.PlainText()), nil
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= titleExcerpt {
		return s
	}
	return string(r[:titleExcerpt]) + "..."
}
