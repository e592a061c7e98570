// Package pattern compiles LIKE/ILIKE templates and regular expressions into
// immutable matchers that can be shared by concurrent evaluations.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind distinguishes wildcard templates from regular expressions
type Kind uint8

const (
	KindLike Kind = iota
	KindRegex
)

func (k Kind) String() string {
	if k == KindRegex {
		return "REGEX"
	}
	return "LIKE"
}

type likeMode uint8

const (
	modeRegexp likeMode = iota
	modeExact
	modePrefix
	modeSuffix
	modeContains
	modeAny
)

// Pattern is a compiled matcher. It is immutable once built.
type Pattern struct {
	Source          string
	Kind            Kind
	CaseInsensitive bool

	mode    likeMode
	literal string
	re      *regexp.Regexp
}

// Match reports whether s matches the pattern. LIKE patterns are anchored at
// both ends, regular expressions match anywhere in s.
func (p *Pattern) Match(s string) bool {
	if p.Kind == KindLike && p.CaseInsensitive {
		s = strings.ToLower(s)
	}
	switch p.mode {
	case modeExact:
		return s == p.literal
	case modePrefix:
		return strings.HasPrefix(s, p.literal)
	case modeSuffix:
		return strings.HasSuffix(s, p.literal)
	case modeContains:
		return strings.Contains(s, p.literal)
	case modeAny:
		return true
	}
	return p.re.MatchString(s)
}

func (p *Pattern) String() string {
	return fmt.Sprintf("%s(%q, ci=%t)", p.Kind, p.Source, p.CaseInsensitive)
}

type likeToken struct {
	wildcard byte // '%', '_' or 0 for a literal run
	literal  string
}

// tokenizeLike splits a template into literal runs and wildcards. A backslash
// escapes the next character; a trailing backslash is a literal backslash.
func tokenizeLike(template string) []likeToken {
	var tokens []likeToken
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, likeToken{literal: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(template); i++ {
		c := template[i]
		switch c {
		case '\\':
			if i+1 < len(template) {
				i++
				lit.WriteByte(template[i])
			} else {
				lit.WriteByte('\\')
			}
		case '%', '_':
			flush()
			// consecutive '%' collapse into one
			if c == '%' && len(tokens) > 0 && tokens[len(tokens)-1].wildcard == '%' {
				continue
			}
			tokens = append(tokens, likeToken{wildcard: c})
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return tokens
}

// CompileLike compiles a LIKE (or, with caseInsensitive, ILIKE) template.
// Every template is valid, so compilation cannot fail.
func CompileLike(template string, caseInsensitive bool) *Pattern {
	p := &Pattern{Source: template, Kind: KindLike, CaseInsensitive: caseInsensitive}
	if caseInsensitive {
		template = strings.ToLower(template)
	}
	tokens := tokenizeLike(template)

	isPct := func(t likeToken) bool { return t.wildcard == '%' }
	switch {
	case len(tokens) == 0:
		p.mode = modeExact
		return p
	case len(tokens) == 1 && tokens[0].wildcard == 0:
		p.mode, p.literal = modeExact, tokens[0].literal
		return p
	case len(tokens) == 1 && isPct(tokens[0]):
		p.mode = modeAny
		return p
	case len(tokens) == 2 && tokens[0].wildcard == 0 && isPct(tokens[1]):
		p.mode, p.literal = modePrefix, tokens[0].literal
		return p
	case len(tokens) == 2 && isPct(tokens[0]) && tokens[1].wildcard == 0:
		p.mode, p.literal = modeSuffix, tokens[1].literal
		return p
	case len(tokens) == 3 && isPct(tokens[0]) && tokens[1].wildcard == 0 && isPct(tokens[2]):
		p.mode, p.literal = modeContains, tokens[1].literal
		return p
	}

	var sb strings.Builder
	sb.WriteString(`^(?s:`)
	for _, t := range tokens {
		switch t.wildcard {
		case '%':
			sb.WriteString(`.*`)
		case '_':
			sb.WriteString(`.`)
		default:
			sb.WriteString(regexp.QuoteMeta(t.literal))
		}
	}
	sb.WriteString(`)$`)
	p.mode = modeRegexp
	// quoted literals and wildcards always form a valid expression
	p.re = regexp.MustCompile(sb.String())
	return p
}

// CompileRegex compiles a regular expression. With caseInsensitive the
// expression matches regardless of letter case.
func CompileRegex(expr string, caseInsensitive bool) (*Pattern, error) {
	src := expr
	if caseInsensitive {
		src = "(?i)" + expr
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression %q: %w", expr, err)
	}
	return &Pattern{
		Source:          expr,
		Kind:            KindRegex,
		CaseInsensitive: caseInsensitive,
		mode:            modeRegexp,
		re:              re,
	}, nil
}

// StartsWith implements the ^@ operator; it needs no compilation
func StartsWith(s, prefix string) bool {
	return strings.HasPrefix(s, prefix)
}
