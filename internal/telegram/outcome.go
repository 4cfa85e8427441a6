package telegram

import (
	"errors"
	"strings"

	"github.com/go-telegram/bot"
)

// DeleteOutcome classifies a best-effort message deletion.
type DeleteOutcome int

const (
	Deleted DeleteOutcome = iota
	NotFound
	Forbidden
	Failed
)

func (o DeleteOutcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	default:
		return "failed"
	}
}

// classifyDelete maps the result of a deleteMessage call to an outcome.
// Telegram reports missing messages and missing rights as 400 responses, so
// the description decides between NotFound and Forbidden.
func classifyDelete(ok bool, err error) DeleteOutcome {
	if err == nil {
		if ok {
			return Deleted
		}
		return Failed
	}

	desc := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, bot.ErrorForbidden):
		return Forbidden
	case errors.Is(err, bot.ErrorNotFound):
		return NotFound
	case errors.Is(err, bot.ErrorBadRequest) && strings.Contains(desc, "not found"):
		return NotFound
	case errors.Is(err, bot.ErrorBadRequest) && (strings.Contains(desc, "can't be deleted") || strings.Contains(desc, "not enough rights")):
		return Forbidden
	default:
		return Failed
	}
}
