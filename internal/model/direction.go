package model

import (
	"fmt"
	"strings"
)

// Direction selects which reserve a swap pays into.
type Direction uint8

const (
	AToB Direction = iota
	BToA
)

func (d Direction) String() string {
	if d == BToA {
		return "b_to_a"
	}
	return "a_to_b"
}

// ParseDirection accepts "a_to_b"/"b_to_a" and the short forms "ab"/"ba".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a_to_b", "atob", "ab", "a":
		return AToB, nil
	case "b_to_a", "btoa", "ba", "b":
		return BToA, nil
	default:
		return 0, fmt.Errorf("invalid direction: %q", s)
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
