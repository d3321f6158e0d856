package config

import (
	"fmt"
	"regexp"
	"strconv"
)

// MessageFilter decides whether a message text may be broadcast: the
// length must fall inside the configured bounds and the text must not
// match any banned pattern.
type MessageFilter struct {
	minLen int
	maxLen int
	banned []*regexp.Regexp
}

// NewMessageFilter returns a filter with bounds 1..65535 and no rules.
func NewMessageFilter() *MessageFilter {
	return &MessageFilter{minLen: 1, maxLen: maxMessageBound}
}

// Ban denies every message matching the pattern.
func (f *MessageFilter) Ban(re *regexp.Regexp) {
	f.banned = append(f.banned, re)
}

// SetMinLen sets the lower length bound; it must not exceed the
// current upper bound.
func (f *MessageFilter) SetMinLen(n int) error {
	if n < 1 || n > maxMessageBound {
		return fmt.Errorf("message min-length must be between 1 and %d", maxMessageBound)
	}
	if n > f.maxLen {
		return fmt.Errorf("message min-length %d exceeds max-length %d", n, f.maxLen)
	}
	f.minLen = n
	return nil
}

// SetMaxLen sets the upper length bound; it must not fall below the
// current lower bound.
func (f *MessageFilter) SetMaxLen(n int) error {
	if n < 1 || n > maxMessageBound {
		return fmt.Errorf("message max-length must be between 1 and %d", maxMessageBound)
	}
	if n < f.minLen {
		return fmt.Errorf("message max-length %d is below min-length %d", n, f.minLen)
	}
	f.maxLen = n
	return nil
}

// Allowed reports whether text passes the filter.
func (f *MessageFilter) Allowed(text string) bool {
	if len(text) < f.minLen || len(text) > f.maxLen {
		return false
	}
	for _, re := range f.banned {
		if re.MatchString(text) {
			return false
		}
	}
	return true
}

// merge overwrites the length bounds with other's and appends its
// banned patterns.
func (f *MessageFilter) merge(other *MessageFilter) {
	f.minLen = other.minLen
	f.maxLen = other.maxLen
	f.banned = append(f.banned, other.banned...)
}

func (f *MessageFilter) processLine(line string) error {
	sub, arg := splitCommand(line)
	switch sub {
	case "ban":
		re, err := parseRegexpArg("message ban", arg)
		if err != nil {
			return err
		}
		f.Ban(re)
		return nil
	case "min-length":
		n, err := parseLengthArg("message min-length", arg, maxMessageBound)
		if err != nil {
			return err
		}
		return f.SetMinLen(n)
	case "max-length":
		n, err := parseLengthArg("message max-length", arg, maxMessageBound)
		if err != nil {
			return err
		}
		return f.SetMaxLen(n)
	default:
		return fmt.Errorf("`message %s`: unknown sub-command", sub)
	}
}

func (f *MessageFilter) canonicalLines() []string {
	lines := []string{
		"message min-length " + strconv.Itoa(f.minLen),
		"message max-length " + strconv.Itoa(f.maxLen),
	}
	for _, re := range f.banned {
		lines = append(lines, "message ban "+re.String())
	}
	return lines
}
