package analytics

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"natalia_bot/internal/domain"
)

// WordCount is a token and how often it occurred.
type WordCount struct {
	Word  string
	Count int
}

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}'_-]*`)

// defaultStopwords are common English words left out of word pictures.
var defaultStopwords = []string{
	"a", "about", "above", "after", "again", "against", "all", "also", "am", "an", "and", "any", "are", "as", "at",
	"be", "because", "been", "before", "being", "below", "between", "both", "but", "by",
	"can", "cannot", "could", "did", "do", "does", "doing", "down", "during",
	"each", "else", "ever", "few", "for", "from", "further", "get", "got",
	"had", "has", "have", "having", "he", "her", "here", "hers", "herself", "him", "himself", "his", "how",
	"i", "if", "in", "into", "is", "it", "its", "itself", "just", "like",
	"me", "more", "most", "my", "myself", "no", "nor", "not", "now",
	"of", "off", "on", "once", "only", "or", "other", "otherwise", "ought", "our", "ours", "ourselves", "out", "over", "own",
	"r", "same", "shall", "she", "should", "since", "so", "some", "such",
	"than", "that", "the", "their", "theirs", "them", "themselves", "then", "there", "these", "they", "this", "those", "through", "to", "too",
	"under", "until", "up", "very", "was", "we", "were", "what", "when", "where", "which", "while", "who", "whom", "why", "will", "with", "would",
	"you", "your", "yours", "yourself", "yourselves",
	"don't", "i'm", "it's", "that's", "can't", "won't", "isn't", "didn't", "doesn't", "i've", "you're", "there's",
}

// Stopwords merges the default list with configured extras, lower-cased.
func Stopwords(extra []string) map[string]struct{} {
	set := make(map[string]struct{}, len(defaultStopwords)+len(extra))
	for _, w := range defaultStopwords {
		set[w] = struct{}{}
	}
	for _, w := range extra {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

// Tokenize lower-cases text and splits it into words. Possessive "'s" is
// dropped, and tokens shorter than two runes or made only of digits are
// skipped.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)

	tokens := raw[:0]
	for _, tok := range raw {
		tok = strings.TrimSuffix(tok, "'s")
		tok = strings.TrimRight(tok, "'_-")
		if utf8.RuneCountInString(tok) < 2 || isNumeric(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// WordFrequencies counts words across texts, excluding stopwords, most
// frequent first.
func WordFrequencies(texts []string, stopwords map[string]struct{}) []WordCount {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, tok := range Tokenize(text) {
			if _, stop := stopwords[tok]; stop {
				continue
			}
			counts[tok]++
		}
	}
	return sortCounts(counts)
}

// UsernameFrequencies counts messages per username, most active first.
func UsernameFrequencies(msgs []domain.TextMessage) []WordCount {
	counts := make(map[string]int)
	for _, m := range msgs {
		if name := strings.TrimSpace(m.Username); name != "" {
			counts[name]++
		}
	}
	return sortCounts(counts)
}

// Top returns at most n leading entries.
func Top(counts []WordCount, n int) []WordCount {
	if n >= 0 && len(counts) > n {
		return counts[:n]
	}
	return counts
}

func sortCounts(counts map[string]int) []WordCount {
	out := make([]WordCount, 0, len(counts))
	for w, c := range counts {
		out = append(out, WordCount{Word: w, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	return out
}
