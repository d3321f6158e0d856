package config

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// Nickname length bounds are 1..255, message length bounds 1..65535.
const (
	maxNicknameBound = 255
	maxMessageBound  = 65535
)

// NicknameFilter decides whether a nickname may be used. An explicit
// allow entry wins; otherwise the nickname is denied when its length
// falls outside the configured bounds or it matches a banned pattern.
type NicknameFilter struct {
	minLen  int
	maxLen  int
	allowed map[string]struct{}
	banned  []*regexp.Regexp
}

// NewNicknameFilter returns a filter with bounds 1..255 and no rules.
func NewNicknameFilter() *NicknameFilter {
	return &NicknameFilter{
		minLen:  1,
		maxLen:  maxNicknameBound,
		allowed: make(map[string]struct{}),
	}
}

// Allow allow-lists one nickname.
func (f *NicknameFilter) Allow(nick string) {
	f.allowed[nick] = struct{}{}
}

// Ban denies every nickname matching the pattern.
func (f *NicknameFilter) Ban(re *regexp.Regexp) {
	f.banned = append(f.banned, re)
}

// SetMinLen sets the lower length bound; it must not exceed the
// current upper bound.
func (f *NicknameFilter) SetMinLen(n int) error {
	if n < 1 || n > maxNicknameBound {
		return fmt.Errorf("nickname min-length must be between 1 and %d", maxNicknameBound)
	}
	if n > f.maxLen {
		return fmt.Errorf("nickname min-length %d exceeds max-length %d", n, f.maxLen)
	}
	f.minLen = n
	return nil
}

// SetMaxLen sets the upper length bound; it must not fall below the
// current lower bound.
func (f *NicknameFilter) SetMaxLen(n int) error {
	if n < 1 || n > maxNicknameBound {
		return fmt.Errorf("nickname max-length must be between 1 and %d", maxNicknameBound)
	}
	if n < f.minLen {
		return fmt.Errorf("nickname max-length %d is below min-length %d", n, f.minLen)
	}
	f.maxLen = n
	return nil
}

// Allowed reports whether nick passes the filter.
func (f *NicknameFilter) Allowed(nick string) bool {
	if _, ok := f.allowed[nick]; ok {
		return true
	}
	if len(nick) < f.minLen || len(nick) > f.maxLen {
		return false
	}
	for _, re := range f.banned {
		if re.MatchString(nick) {
			return false
		}
	}
	return true
}

// merge overwrites the length bounds with other's and unions the rule
// collections.
func (f *NicknameFilter) merge(other *NicknameFilter) {
	f.minLen = other.minLen
	f.maxLen = other.maxLen
	for n := range other.allowed {
		f.allowed[n] = struct{}{}
	}
	f.banned = append(f.banned, other.banned...)
}

func (f *NicknameFilter) processLine(line string) error {
	sub, arg := splitCommand(line)
	switch sub {
	case "allow":
		if arg == "" {
			return fmt.Errorf("an argument was expected after `nickname allow`")
		}
		f.Allow(arg)
		return nil
	case "ban":
		re, err := parseRegexpArg("nickname ban", arg)
		if err != nil {
			return err
		}
		f.Ban(re)
		return nil
	case "min-length":
		n, err := parseLengthArg("nickname min-length", arg, maxNicknameBound)
		if err != nil {
			return err
		}
		return f.SetMinLen(n)
	case "max-length":
		n, err := parseLengthArg("nickname max-length", arg, maxNicknameBound)
		if err != nil {
			return err
		}
		return f.SetMaxLen(n)
	default:
		return fmt.Errorf("`nickname %s`: unknown sub-command", sub)
	}
}

func parseRegexpArg(cmd, arg string) (*regexp.Regexp, error) {
	if arg == "" {
		return nil, fmt.Errorf("an argument was expected after `%s`", cmd)
	}
	re, err := regexp.Compile(arg)
	if err != nil {
		return nil, fmt.Errorf("could not parse regex after `%s`: %v", cmd, err)
	}
	return re, nil
}

func parseLengthArg(cmd, arg string, bound int) (int, error) {
	if arg == "" {
		return 0, fmt.Errorf("an argument was expected after `%s`", cmd)
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > bound {
		return 0, fmt.Errorf("a number between 1 and %d was expected after `%s`", bound, cmd)
	}
	return n, nil
}

func (f *NicknameFilter) canonicalLines() []string {
	lines := []string{
		"nickname min-length " + strconv.Itoa(f.minLen),
		"nickname max-length " + strconv.Itoa(f.maxLen),
	}
	var allowed []string
	for n := range f.allowed {
		allowed = append(allowed, "nickname allow "+n)
	}
	sort.Strings(allowed)
	lines = append(lines, allowed...)
	for _, re := range f.banned {
		lines = append(lines, "nickname ban "+re.String())
	}
	return lines
}
