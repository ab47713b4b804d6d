package patch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/obiverse/beewallet-core/internal/nineerr"
)

// parsePointer decodes an RFC 6901 JSON pointer into its ordered tokens,
// unescaping "~1" -> "/" and "~0" -> "~". The empty pointer means "the whole
// document" and decodes to zero tokens. Any non-empty pointer must start
// with "/".
func parsePointer(p string) ([]string, error) {
	if p == "" {
		return nil, nil
	}
	if !strings.HasPrefix(p, "/") {
		return nil, fmt.Errorf("%w: pointer must start with '/': %q", nineerr.ErrInvalidPointer, p)
	}
	raw := strings.Split(p[1:], "/")
	tokens := make([]string, len(raw))
	for i, t := range raw {
		t = strings.ReplaceAll(t, "~1", "/")
		t = strings.ReplaceAll(t, "~0", "~")
		tokens[i] = t
	}
	return tokens, nil
}

// getAtPointer navigates doc by tokens and returns the value found there.
func getAtPointer(doc interface{}, tokens []string) (interface{}, error) {
	cur := doc
	for _, tok := range tokens {
		switch v := cur.(type) {
		case map[string]interface{}:
			val, ok := v[tok]
			if !ok {
				return nil, fmt.Errorf("%w: %q", nineerr.ErrPathNotFound, tok)
			}
			cur = val
		case []interface{}:
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("%w: array index %q", nineerr.ErrPathNotFound, tok)
			}
			cur = v[idx]
		default:
			return nil, fmt.Errorf("%w: cannot descend into scalar at %q", nineerr.ErrTypeMismatch, tok)
		}
	}
	return cur, nil
}

// setAtPointer returns a new document with value set at the location named
// by tokens, creating map keys and appending/replacing array elements
// ("-"  always appends) as it goes.
func setAtPointer(doc interface{}, tokens []string, value interface{}) (interface{}, error) {
	if len(tokens) == 0 {
		return value, nil
	}
	return setAtPointerRec(doc, tokens, value)
}

func setAtPointerRec(doc interface{}, tokens []string, value interface{}) (interface{}, error) {
	head, rest := tokens[0], tokens[1:]

	switch v := doc.(type) {
	case map[string]interface{}, nil:
		m, _ := v.(map[string]interface{})
		if m == nil {
			m = make(map[string]interface{})
		}
		if len(rest) == 0 {
			m[head] = value
			return m, nil
		}
		child, err := setAtPointerRec(m[head], rest, value)
		if err != nil {
			return nil, err
		}
		m[head] = child
		return m, nil

	case []interface{}:
		if head == "-" {
			if len(rest) != 0 {
				return nil, fmt.Errorf("%w: '-' must be the final token", nineerr.ErrInvalidPointer)
			}
			return append(v, value), nil
		}
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: array index %q", nineerr.ErrInvalidPointer, head)
		}
		if len(rest) == 0 {
			if idx == len(v) {
				return append(v, value), nil
			}
			if idx > len(v) {
				return nil, fmt.Errorf("%w: array index %d out of bounds", nineerr.ErrPathNotFound, idx)
			}
			v[idx] = value
			return v, nil
		}
		if idx >= len(v) {
			return nil, fmt.Errorf("%w: array index %d out of bounds", nineerr.ErrPathNotFound, idx)
		}
		child, err := setAtPointerRec(v[idx], rest, value)
		if err != nil {
			return nil, err
		}
		v[idx] = child
		return v, nil

	default:
		return nil, fmt.Errorf("%w: cannot set a field on a scalar", nineerr.ErrTypeMismatch)
	}
}

// removeAtPointer returns a new document with the value at tokens removed.
func removeAtPointer(doc interface{}, tokens []string) (interface{}, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	head, rest := tokens[0], tokens[1:]

	switch v := doc.(type) {
	case map[string]interface{}:
		if len(rest) == 0 {
			if _, ok := v[head]; !ok {
				return nil, fmt.Errorf("%w: %q", nineerr.ErrPathNotFound, head)
			}
			delete(v, head)
			return v, nil
		}
		child, err := removeAtPointer(v[head], rest)
		if err != nil {
			return nil, err
		}
		v[head] = child
		return v, nil

	case []interface{}:
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, fmt.Errorf("%w: array index %q", nineerr.ErrPathNotFound, head)
		}
		if len(rest) == 0 {
			return append(v[:idx], v[idx+1:]...), nil
		}
		child, err := removeAtPointer(v[idx], rest)
		if err != nil {
			return nil, err
		}
		v[idx] = child
		return v, nil

	default:
		return nil, fmt.Errorf("%w: cannot remove from a scalar", nineerr.ErrTypeMismatch)
	}
}
