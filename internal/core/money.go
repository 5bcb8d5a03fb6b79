// Package core holds the domain model for schedule-of-works processing.
//
// This file contains the integer-pence money representation. All arithmetic
// and storage happens in pence; decimal pounds appear only at the spreadsheet
// boundary and in rendered output.
package core

import (
	"math"
	"strconv"
	"strings"
)

// Money is a GBP amount in integer pence.
type Money struct {
	Pence int64
}

// ToPence converts decimal pounds to pence, rounding to the nearest penny.
func ToPence(pounds float64) int64 {
	return int64(math.Round(pounds * 100))
}

// FromPence converts pence back to decimal pounds for display and export.
func FromPence(pence int64) float64 {
	return float64(pence) / 100.0
}

// Pounds returns the decimal pound value. Use Pence for calculations.
func (m Money) Pounds() float64 {
	return FromPence(m.Pence)
}

// Mul returns the amount multiplied by a whole quantity.
func (m Money) Mul(qty int64) Money {
	return Money{Pence: m.Pence * qty}
}

// FormatPounds renders pence as a GBP string with a thousands separator,
// e.g. 123456789 -> "£1,234,567.89".
func FormatPounds(pence int64) string {
	neg := pence < 0
	if neg {
		pence = -pence
	}
	pounds := pence / 100
	rem := pence % 100

	digits := strconv.FormatInt(pounds, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	out := "£" + b.String() + "." + twoDigits(rem)
	if neg {
		return "-" + out
	}
	return out
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// FormatPounds renders the amount for display.
func (m Money) FormatPounds() string {
	return FormatPounds(m.Pence)
}

// String implements fmt.Stringer using FormatPounds.
func (m Money) String() string {
	return FormatPounds(m.Pence)
}
