// Package templates stores the bot's reply texts and renders them with
// positional substitutions.
package templates

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

var (
	// ErrMissingTemplate is returned when a key is not present in the store.
	ErrMissingTemplate = errors.New("missing template")
	// ErrMissingSubstitution is returned when a template declares more
	// placeholders than values were supplied.
	ErrMissingSubstitution = errors.New("missing substitution")
)

// Picker returns an index in [0, n).
type Picker func(n int) int

// Store maps template keys to one or more variants. It is immutable after
// construction and safe for concurrent use.
type Store struct {
	variants map[string][]string
	pick     Picker
}

// Option customizes a Store.
type Option func(*Store)

// WithPicker replaces the random variant selector.
func WithPicker(p Picker) Option {
	return func(s *Store) {
		if p != nil {
			s.pick = p
		}
	}
}

// NewStore copies the supplied templates into a new store. Keys with no
// variants are skipped.
func NewStore(templates map[string][]string, opts ...Option) *Store {
	s := &Store{
		variants: make(map[string][]string, len(templates)),
		pick:     rand.IntN,
	}

	for key, list := range templates {
		if len(list) == 0 {
			continue
		}
		s.variants[key] = append([]string(nil), list...)
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Has reports whether key exists.
func (s *Store) Has(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.variants[key]
	return ok
}

// Variants returns the number of variants stored for key.
func (s *Store) Variants(key string) int {
	if s == nil {
		return 0
	}
	return len(s.variants[key])
}

// Render picks a variant of key uniformly at random and substitutes args
// into it.
func (s *Store) Render(key string, args ...any) (string, error) {
	if s == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingTemplate, key)
	}

	list, ok := s.variants[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingTemplate, key)
	}

	variant := list[0]
	if len(list) > 1 {
		variant = list[s.pick(len(list))]
	}

	out, err := Format(variant, args...)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", key, err)
	}

	return out, nil
}

// Format substitutes args into tmpl. Sequential placeholders are %s, %d, %v
// and {}; {N} selects the N-th argument. %% and {{ }} are literal escapes.
// Anything else is copied unchanged.
func Format(tmpl string, args ...any) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	next := 0
	take := func(idx int) (string, error) {
		if idx >= len(args) {
			return "", fmt.Errorf("%w: placeholder %d of %d supplied", ErrMissingSubstitution, idx+1, len(args))
		}
		return fmt.Sprint(args[idx]), nil
	}

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]

		switch c {
		case '%':
			if i+1 >= len(tmpl) {
				b.WriteByte(c)
				continue
			}
			switch tmpl[i+1] {
			case '%':
				b.WriteByte('%')
				i++
			case 's', 'd', 'v':
				val, err := take(next)
				if err != nil {
					return "", err
				}
				next++
				b.WriteString(val)
				i++
			default:
				b.WriteByte(c)
			}

		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			inner := tmpl[i+1 : i+1+end]
			if inner == "" {
				val, err := take(next)
				if err != nil {
					return "", err
				}
				next++
				b.WriteString(val)
				i++
				continue
			}
			idx, err := strconv.Atoi(inner)
			if err != nil || idx < 0 {
				b.WriteByte(c)
				continue
			}
			val, err := take(idx)
			if err != nil {
				return "", err
			}
			b.WriteString(val)
			i += end + 1

		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				i++
			}
			b.WriteByte('}')

		default:
			b.WriteByte(c)
		}
	}

	return b.String(), nil
}
