// Package moderation evaluates message text against the configured referral
// detector, counter-shill rules and forwarding patterns.
package moderation

import (
	"fmt"
	"regexp"
	"strings"

	"natalia_bot/internal/config"
)

// Rule is a compiled counter-shill rule.
type Rule struct {
	Title string
	Link  string

	pattern *regexp.Regexp
}

// Policy holds the compiled moderation patterns. A nil pattern never matches.
type Policy struct {
	detector    *regexp.Regexp
	rules       []Rule
	forwardURLs *regexp.Regexp
}

// NewPolicy compiles the detector, the counter-shill rules in their
// configured order and the URL forwarding pattern.
func NewPolicy(detector string, rules []config.CounterShillRule, forwardURLs string) (*Policy, error) {
	p := &Policy{rules: make([]Rule, 0, len(rules))}

	var err error
	if p.detector, err = compileOptional(detector); err != nil {
		return nil, fmt.Errorf("compile shill detector: %w", err)
	}
	if p.forwardURLs, err = compileOptional(forwardURLs); err != nil {
		return nil, fmt.Errorf("compile forward urls: %w", err)
	}

	for _, rule := range rules {
		re, err := regexp.Compile(rule.Match)
		if err != nil {
			return nil, fmt.Errorf("compile counter_shill %q: %w", rule.Title, err)
		}
		p.rules = append(p.rules, Rule{Title: rule.Title, Link: rule.Link, pattern: re})
	}

	return p, nil
}

func compileOptional(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

// IsShill reports whether text contains a referral link.
func (p *Policy) IsShill(text string) bool {
	if p == nil || p.detector == nil {
		return false
	}
	return p.detector.MatchString(text)
}

// MatchingRules returns the counter-shill rules whose pattern matches text,
// in configured order.
func (p *Policy) MatchingRules(text string) []Rule {
	if p == nil {
		return nil
	}

	var matched []Rule
	for _, rule := range p.rules {
		if rule.pattern.MatchString(text) {
			matched = append(matched, rule)
		}
	}
	return matched
}

// ShouldForwardURL reports whether text matches the URL forwarding pattern.
func (p *Policy) ShouldForwardURL(text string) bool {
	if p == nil || p.forwardURLs == nil {
		return false
	}
	return p.forwardURLs.MatchString(text)
}
