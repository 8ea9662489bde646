package style

import (
	"sort"
	"strings"
)

// Property names understood by the engine.
const (
	FontSize   = "font-size"
	FontFamily = "font-family"
	LineHeight = "line-height"
	WhiteSpace = "white-space"
	Color      = "color"
	Width      = "width"
	Height     = "height"
	MaxWidth   = "max-width"
	MaxHeight  = "max-height"
	TextAlign  = "text-align"
)

// None is the keyword for an unconstrained max-width/max-height.
const None = "none"

// Inherited lists the properties children take from their parent when unset.
var Inherited = map[string]bool{
	FontSize:   true,
	FontFamily: true,
	LineHeight: true,
	WhiteSpace: true,
	Color:      true,
	TextAlign:  true,
}

// Defaults are the initial values of every known property.
var Defaults = Declarations{
	FontSize:   "16px",
	FontFamily: "Body",
	LineHeight: "1.2",
	WhiteSpace: "normal",
	Color:      "#1e1e1e",
	Width:      "auto",
	Height:     "auto",
	MaxWidth:   None,
	MaxHeight:  None,
	TextAlign:  "left",
}

// Declarations maps lower-case property names to raw values.
type Declarations map[string]string

// Get returns the trimmed value of property or "".
func (d Declarations) Get(property string) string {
	if d == nil {
		return ""
	}
	return strings.TrimSpace(d[normalize(property)])
}

// Set stores value; an empty value removes the property.
func (d Declarations) Set(property, value string) {
	property = normalize(property)
	value = strings.TrimSpace(value)
	if value == "" {
		delete(d, property)
		return
	}
	d[property] = value
}

// Clone returns an independent copy.
func (d Declarations) Clone() Declarations {
	out := make(Declarations, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// String formats the declarations as a sorted CSS declaration block.
func (d Declarations) String() string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(d[k])
		b.WriteString(";")
	}
	return b.String()
}

func normalize(property string) string {
	return strings.ToLower(strings.TrimSpace(property))
}
