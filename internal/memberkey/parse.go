package memberkey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyntax is wrapped by every Parse failure.
var ErrSyntax = errors.New("invalid member key")

// Parse reads the canonical text form produced by Key.String:
//
//	T:example.com/api/model.Widget
//	P:example.com/api/model.Widget.Name
//	M:example.com/api/model.Widget.Rename(string, ...int)
//	C:example.com/api/model.Widget(string)
func Parse(s string) (Key, error) {
	if len(s) < 3 || s[1] != ':' {
		return Key{}, fmt.Errorf("%w: %q: missing kind prefix", ErrSyntax, s)
	}
	rest := s[2:]

	var k Key
	switch s[0] {
	case 'T':
		k = Type(rest)
	case 'P':
		dot := strings.LastIndexByte(rest, '.')
		if dot < 0 {
			return Key{}, fmt.Errorf("%w: %q: missing property name", ErrSyntax, s)
		}
		k = Property(rest[:dot], rest[dot+1:])
	case 'M':
		head, params, err := splitCall(rest)
		if err != nil {
			return Key{}, fmt.Errorf("%w: %q: %v", ErrSyntax, s, err)
		}
		dot := strings.LastIndexByte(head, '.')
		if dot < 0 {
			return Key{}, fmt.Errorf("%w: %q: missing method name", ErrSyntax, s)
		}
		k = Method(head[:dot], head[dot+1:], params)
	case 'C':
		head, params, err := splitCall(rest)
		if err != nil {
			return Key{}, fmt.Errorf("%w: %q: %v", ErrSyntax, s, err)
		}
		k = Constructor(head, params)
	default:
		return Key{}, fmt.Errorf("%w: %q: unknown kind %q", ErrSyntax, s, s[0])
	}

	if err := k.Validate(); err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return k, nil
}

// splitCall splits "name(a, b)" into "name" and its parameter list.
func splitCall(s string) (string, []string, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return "", nil, errors.New("missing parameter list")
	}
	params, err := SplitParams(s[open+1 : len(s)-1])
	if err != nil {
		return "", nil, err
	}
	return s[:open], params, nil
}

// SplitParams splits a comma separated parameter type list, ignoring commas
// nested inside brackets, such as those of func or generic types.
func SplitParams(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced %q at offset %d", s[i], i)
			}
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, errors.New("unbalanced brackets")
	}
	out = append(out, strings.TrimSpace(s[start:]))
	for _, p := range out {
		if p == "" {
			return nil, errors.New("empty parameter type")
		}
	}
	return out, nil
}
