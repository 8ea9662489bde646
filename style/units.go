package style

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// This file defines unit-safe length values. Computed styles always carry px.

// Unit represents the original unit of a length value as written by the author.
type Unit int

const (
	UnitNone    Unit = iota // unit-less numbers like factors
	UnitPX                  // CSS pixels (1/96 in)
	UnitPT                  // points
	UnitMM                  // millimeters
	UnitCM                  // centimeters
	UnitIN                  // inches
	UnitEM                  // relative to the element font size
	UnitPercent             // relative to a reference length
)

// Conversion constants between CSS pixels and physical units.
const (
	PxPerIn = 96.0
	PxPerPt = PxPerIn / 72.0
	PxPerMm = PxPerIn / 25.4
	MmPerPx = 1.0 / PxPerMm
)

// ErrNotPixels is returned by ParsePX for values that do not end in px.
var ErrNotPixels = errors.New("style: value is not a pixel length")

var unitSuffixes = []struct {
	s string
	u Unit
}{{"px", UnitPX}, {"pt", UnitPT}, {"mm", UnitMM}, {"cm", UnitCM}, {"in", UnitIN}, {"em", UnitEM}, {"%", UnitPercent}}

// String returns a short string for a Unit value.
func (u Unit) String() string {
	switch u {
	case UnitPX:
		return "px"
	case UnitPT:
		return "pt"
	case UnitMM:
		return "mm"
	case UnitCM:
		return "cm"
	case UnitIN:
		return "in"
	case UnitEM:
		return "em"
	case UnitPercent:
		return "%"
	default:
		return ""
	}
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// Absolute reports whether the length converts to px without context.
func (l Length) Absolute() bool {
	switch l.Unit {
	case UnitPX, UnitPT, UnitMM, UnitCM, UnitIN:
		return true
	}
	return false
}

// ToPX converts the length to CSS pixels. em resolves against fontSize and
// percentages against reference, both given in px.
func (l Length) ToPX(fontSize, reference float64) float64 {
	switch l.Unit {
	case UnitPT:
		return l.Value * PxPerIn / 72
	case UnitMM:
		return l.Value * PxPerIn / 25.4
	case UnitCM:
		return l.Value * PxPerIn / 2.54
	case UnitIN:
		return l.Value * PxPerIn
	case UnitEM:
		return l.Value * fontSize
	case UnitPercent:
		return reference * l.Value / 100
	default:
		// px and unit-less numbers are taken as px
		return l.Value
	}
}

func (l Length) String() string {
	return strconv.FormatFloat(l.Value, 'f', -1, 64) + l.Unit.String()
}

// ParseLength parses a CSS length string preserving its unit.
func ParseLength(value string) (Length, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Length{}, fmt.Errorf("style: empty length")
	}
	unit := UnitNone
	num := v
	for _, suf := range unitSuffixes {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{}, fmt.Errorf("style: invalid length %q: %w", value, err)
	}
	if !finite(f) {
		return Length{}, fmt.Errorf("style: invalid length %q: not finite", value)
	}
	return Length{Value: f, Unit: unit}, nil
}

// ParsePX parses a resolved pixel value such as "12.5px".
func ParsePX(value string) (float64, error) {
	v := strings.TrimSpace(value)
	if !strings.HasSuffix(v, "px") {
		return 0, fmt.Errorf("%q: %w", value, ErrNotPixels)
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64)
	if err != nil || !finite(f) {
		return 0, fmt.Errorf("%q: %w", value, ErrNotPixels)
	}
	return f, nil
}

// strconv 接受 NaN 与 Inf，长度只允许有限值。
func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// FormatPX renders px with two decimals, e.g. "13.33px".
func FormatPX(px float64) string {
	return strconv.FormatFloat(Round2(px), 'f', 2, 64) + "px"
}

// PX renders px at full precision, as used for computed values.
func PX(px float64) string {
	return strconv.FormatFloat(px, 'f', -1, 64) + "px"
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }
