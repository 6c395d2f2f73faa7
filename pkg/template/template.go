// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package template implements the two-phase job-spec substitution. A
// template is tokenized once into literal, user-placeholder and
// runtime-placeholder fragments; rendering substitutes only the user kind
// and leaves everything the scheduler resolves at launch untouched.
package template

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AMD-AGI/primus-papi/pkg/errors"
)

type fragmentKind int

const (
	fragmentLiteral fragmentKind = iota
	fragmentUser
	fragmentRuntime
)

type fragment struct {
	kind fragmentKind
	// text is the literal content, or the raw placeholder including the
	// ${...} delimiters for the runtime kind.
	text string
	// name is the placeholder name for the user kind.
	name string
}

// Template is a parsed job specification ready for substitution.
type Template struct {
	fragments []fragment
	userNames map[string]bool
}

// Parse tokenizes a template. `$${` is the scheduler's escape for a
// literal `${` and is kept as-is; an unterminated `${` is an error so a
// broken template fails at load, not at submit.
func Parse(text string) (*Template, error) {
	t := &Template{userNames: map[string]bool{}}
	var literal strings.Builder

	for i := 0; i < len(text); {
		idx := strings.Index(text[i:], "${")
		if idx < 0 {
			literal.WriteString(text[i:])
			break
		}
		// `$${...}` is an escaped literal, swallow through the closing
		// brace so its body is never mistaken for a placeholder.
		if idx+i > 0 && text[idx+i-1] == '$' {
			end := strings.IndexByte(text[i+idx:], '}')
			if end < 0 {
				return nil, errors.NewInternalError(fmt.Sprintf("unterminated placeholder at offset %d", i+idx))
			}
			literal.WriteString(text[i : i+idx+end+1])
			i += idx + end + 1
			continue
		}
		literal.WriteString(text[i : i+idx])
		i += idx

		end := strings.IndexByte(text[i:], '}')
		if end < 0 {
			return nil, errors.NewInternalError(fmt.Sprintf("unterminated placeholder at offset %d", i))
		}
		raw := text[i : i+end+1]
		name := text[i+2 : i+end]
		if strings.ContainsAny(name, "\"\n") {
			return nil, errors.NewInternalError(fmt.Sprintf("unterminated placeholder at offset %d", i))
		}

		if literal.Len() > 0 {
			t.fragments = append(t.fragments, fragment{kind: fragmentLiteral, text: literal.String()})
			literal.Reset()
		}
		if isUserPlaceholder(name) {
			t.fragments = append(t.fragments, fragment{kind: fragmentUser, name: name})
			t.userNames[name] = true
		} else {
			t.fragments = append(t.fragments, fragment{kind: fragmentRuntime, text: raw})
		}
		i += end + 1
	}
	if literal.Len() > 0 {
		t.fragments = append(t.fragments, fragment{kind: fragmentLiteral, text: literal.String()})
	}
	return t, nil
}

// isUserPlaceholder: user placeholders are ALL_CAPS identifiers; anything
// else (lowercase, meta.*, env interpolation) belongs to the scheduler.
func isUserPlaceholder(name string) bool {
	if name == "" {
		return false
	}
	if name[0] < 'A' || name[0] > 'Z' {
		return false
	}
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
		case ch == '_':
		default:
			return false
		}
	}
	return true
}

// UserPlaceholders lists the user placeholder names, sorted.
func (t *Template) UserPlaceholders() []string {
	names := make([]string, 0, len(t.userNames))
	for name := range t.userNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render substitutes the user placeholders. Every user placeholder in the
// template must be present in values; runtime placeholders pass through
// untouched. Values are escaped so user input can never mint a new
// placeholder. Deterministic: same inputs, same bytes.
func (t *Template) Render(values map[string]string) (string, error) {
	for name := range t.userNames {
		if _, ok := values[name]; !ok {
			return "", errors.NewInternalError(fmt.Sprintf("missing placeholder %s", name)).
				WithDetail("placeholder", name)
		}
	}

	var out strings.Builder
	for _, frag := range t.fragments {
		switch frag.kind {
		case fragmentLiteral, fragmentRuntime:
			out.WriteString(frag.text)
		case fragmentUser:
			out.WriteString(EscapeValue(values[frag.name]))
		}
	}
	return out.String(), nil
}

// EscapeValue neutralizes `${` in user input by rewriting it to the
// scheduler's literal escape, so the substituted text can never be
// interpreted as a placeholder downstream.
func EscapeValue(value string) string {
	return strings.ReplaceAll(value, "${", "$${")
}
