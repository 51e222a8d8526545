package cards

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type scalarKind uint8

const (
	kindUnset scalarKind = iota
	kindString
	kindNumber
	kindBool
)

// Scalar holds a loosely typed JSON value (string, number or bool) such as
// a grade that listings report as 10, "10" or "9.5". It keeps the original
// text so it can be echoed back unchanged.
type Scalar struct {
	text string
	kind scalarKind
}

// String returns a Scalar holding text
func String(s string) Scalar {
	return Scalar{text: s, kind: kindString}
}

// Number returns a Scalar holding a numeric literal such as "10" or "9.5"
func Number(s string) Scalar {
	return Scalar{text: s, kind: kindNumber}
}

// IsSet reports whether the value was present and not null
func (s Scalar) IsSet() bool {
	return s.kind != kindUnset
}

// IsNumber reports whether the value was a JSON number
func (s Scalar) IsNumber() bool {
	return s.kind == kindNumber
}

func (s Scalar) String() string {
	return s.text
}

// Blank reports whether the value carries no usable information:
// unset, null, whitespace-only text, false or a numeric zero.
func (s Scalar) Blank() bool {
	switch s.kind {
	case kindUnset:
		return true
	case kindNumber:
		f, err := strconv.ParseFloat(s.text, 64)
		return err == nil && f == 0
	case kindBool:
		return s.text != "true"
	default:
		return strings.TrimSpace(s.text) == ""
	}
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = Scalar{}
		return nil
	}

	switch data[0] {
	case '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = String(str)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*s = Scalar{text: strconv.FormatBool(b), kind: kindBool}
	case '{', '[':
		return fmt.Errorf("expected string or number, got %s", string(data))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*s = Number(n.String())
	}
	return nil
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case kindUnset:
		return []byte("null"), nil
	case kindNumber, kindBool:
		return []byte(s.text), nil
	default:
		return json.Marshal(s.text)
	}
}

// MarshalYAML renders the scalar as its text, or null when unset
func (s Scalar) MarshalYAML() (any, error) {
	if s.kind == kindUnset {
		return nil, nil
	}
	return s.text, nil
}
