package entity

import (
	"strconv"
	"strings"
)

// Value is what a profile cell evaluates to at a given instant: a number or the raw cell content.
type Value struct {
	// Number is valid only if Literal is false.
	Number float64
	// Raw holds the original cell when the value is a literal.
	Raw     string
	Literal bool
}

func Number(n float64) Value {
	return Value{Number: n}
}

func Literal(raw string) Value {
	return Value{Raw: raw, Literal: true}
}

// Float returns the numeric value and true if the value is not a literal.
func (v Value) Float() (float64, bool) {
	if v.Literal {
		return 0, false
	}
	return v.Number, true
}

// IsEmpty is true for an empty literal cell. Empty cells never start a controller.
func (v Value) IsEmpty() bool {
	return v.Literal && strings.TrimSpace(v.Raw) == ""
}

func (v Value) String() string {
	if v.Literal {
		return v.Raw
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}
