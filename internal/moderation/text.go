package moderation

import (
	"regexp"
	"unicode/utf16"
)

var hashtagPattern = regexp.MustCompile(`#[\p{L}\p{N}_]+`)

// Hashtags returns every hashtag in text, in order of appearance.
func Hashtags(text string) []string {
	return hashtagPattern.FindAllString(text, -1)
}

// ContainsHashtag reports whether text carries the given hashtag.
func ContainsHashtag(text, tag string) bool {
	if tag == "" {
		return false
	}
	for _, found := range Hashtags(text) {
		if found == tag {
			return true
		}
	}
	return false
}

// EntityText extracts the substring addressed by a Telegram message entity.
// Offsets and lengths count UTF-16 code units. Out of range entities yield "".
func EntityText(text string, offset, length int) string {
	if offset < 0 || length <= 0 {
		return ""
	}

	units := utf16.Encode([]rune(text))
	if offset+length > len(units) {
		return ""
	}

	return string(utf16.Decode(units[offset : offset+length]))
}
