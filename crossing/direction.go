// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package crossing

import (
	"fmt"
	"strings"
)

// Direction is one of the two mutually exclusive travel orientations across a crossing.
type Direction int

const (
	// A is the first direction.  It is the default active direction of a new crossing.
	A Direction = iota

	// B is the second direction.
	B
)

// Directions lists every valid Direction.
var Directions = [2]Direction{A, B}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == A {
		return B
	}

	return A
}

// Valid tests whether d is A or B.
func (d Direction) Valid() bool {
	return d == A || d == B
}

func (d Direction) String() string {
	switch d {
	case A:
		return "A"
	case B:
		return "B"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection converts text into a Direction.  Matching is case-insensitive, and
// "left" and "right" are accepted as aliases for A and B.
func ParseDirection(v string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "a", "left":
		return A, nil
	case "b", "right":
		return B, nil
	default:
		return A, fmt.Errorf("invalid direction: %q", v)
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction: %d", int(d))
	}

	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err == nil {
		*d = parsed
	}

	return err
}
