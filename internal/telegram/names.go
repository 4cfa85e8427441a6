package telegram

import (
	"strings"

	"github.com/go-telegram/bot/models"
)

// DisplayName is the first name of the user, else the username, else "".
func DisplayName(user *models.User) string {
	if user == nil {
		return ""
	}
	if name := strings.TrimSpace(user.FirstName); name != "" {
		return name
	}
	return strings.TrimSpace(user.Username)
}

func username(user *models.User) string {
	if user == nil {
		return ""
	}
	return strings.TrimSpace(user.Username)
}

func isGroupChat(chat models.Chat) bool {
	return chat.Type == models.ChatTypeGroup || chat.Type == models.ChatTypeSupergroup
}

// escapeMarkdown escapes the characters legacy Markdown treats as markup.
func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)
