package messaging

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrEmptyPattern = errors.New("event pattern is empty")

// Pattern matches event names.
//
// A pattern without '*' matches by string equality. '*' matches any run of characters inside a
// single dot segment, '**' matches any run including dots.
type Pattern struct {
	raw string
	re  *regexp.Regexp
}

// CompilePattern compiles an event pattern into an anchored matcher.
func CompilePattern(pattern string) (*Pattern, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, ErrEmptyPattern
	}
	if !strings.Contains(pattern, "*") {
		return &Pattern{raw: pattern}, nil
	}

	multi := strings.Split(pattern, "**")
	for i, part := range multi {
		single := strings.Split(part, "*")
		for j, literal := range single {
			single[j] = regexp.QuoteMeta(literal)
		}
		multi[i] = strings.Join(single, `[^.]*`)
	}

	re, err := regexp.Compile("^" + strings.Join(multi, ".*") + "$")
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return &Pattern{raw: pattern, re: re}, nil
}

// Match reports whether the event name matches the pattern.
func (p *Pattern) Match(eventName string) bool {
	if p.re == nil {
		return p.raw == eventName
	}
	return p.re.MatchString(eventName)
}

func (p *Pattern) String() string {
	return p.raw
}
