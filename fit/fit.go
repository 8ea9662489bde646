// Package fit shrinks an element's font size until its laid out box satisfies
// the max-width/max-height declared in its computed style. Content is never
// scaled up.
package fit

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/ByLCY/fitbox/dom"
	"github.com/ByLCY/fitbox/style"
)

// ErrNotPixels is returned when a length needed for fitting is not in px.
var ErrNotPixels = style.ErrNotPixels

// Rect is a measured box in px.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Host is the rendering engine the resolver measures against.
type Host interface {
	// ComputedValue returns the resolved value of property; lengths are px
	// and unconstrained maxima are "none".
	ComputedValue(el *dom.Element, property string) string
	InlineStyle(el *dom.Element, property string) string
	// SetInlineStyle sets an inline override; "" clears it.
	SetInlineStyle(el *dom.Element, property, value string)
	BoundingRect(el *dom.Element) (Rect, error)
}

// Strategy selects how the height ratio is searched.
type Strategy int

const (
	// StrategyScan probes Steps+1 evenly spaced ratios from 1 down to the
	// lower bound and keeps the first that fits.
	StrategyScan Strategy = iota
	// StrategyBisect bisects [lowerBound, 1] until Tolerance is reached.
	StrategyBisect
)

func (s Strategy) String() string {
	if s == StrategyBisect {
		return "bisect"
	}
	return "scan"
}

// ParseStrategy maps "scan"/"bisect" to a Strategy.
func ParseStrategy(v string) (Strategy, error) {
	switch v {
	case "", "scan":
		return StrategyScan, nil
	case "bisect":
		return StrategyBisect, nil
	}
	return StrategyScan, fmt.Errorf("fit: unknown strategy %q", v)
}

// Options tunes the resolver. Zero values take the defaults.
type Options struct {
	Strategy      Strategy
	Steps         int     // scan: number of equal steps, default 5
	Tolerance     float64 // bisect: interval width to stop at, default 0.005
	MaxIterations int     // bisect: hard cap, default 16
	Logger        *slog.Logger
}

const (
	defaultSteps         = 5
	defaultTolerance     = 0.005
	defaultMaxIterations = 16
)

// Ratio holds the shrink factors per axis; nil means no constraint applies.
type Ratio struct {
	Width  *float64
	Height *float64
}

// Min returns the smallest present ratio, or +Inf when both are nil.
func (r Ratio) Min() float64 {
	out := math.Inf(1)
	if r.Width != nil {
		out = math.Min(out, *r.Width)
	}
	if r.Height != nil {
		out = math.Min(out, *r.Height)
	}
	return out
}

// Outcome describes what Apply did.
type Outcome struct {
	Ratio    Ratio
	Final    float64 // min of the ratios, +Inf when unconstrained
	Original float64 // natural font size in px
	FontSize float64 // applied font size in px, equal to Original when not applied
	Applied  bool
}

// Resolver computes and applies fit ratios through a Host.
type Resolver struct {
	host Host
	opts Options
	log  *slog.Logger
}

// New returns a Resolver bound to host.
func New(host Host, opts Options) *Resolver {
	if opts.Steps <= 0 {
		opts.Steps = defaultSteps
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = defaultTolerance
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{host: host, opts: opts, log: log}
}

// Apply clears any previous font-size override, computes the ratios and, when
// the element overflows, sets its font size to originalSize*ratio.
func (r *Resolver) Apply(el *dom.Element) (Outcome, error) {
	r.host.SetInlineStyle(el, style.FontSize, "")

	ratio, err := r.ComputeRatios(el)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Ratio: ratio, Final: ratio.Min()}
	original, err := r.px(el, style.FontSize)
	if math.IsInf(out.Final, 1) || out.Final >= 1 {
		// nothing to shrink; an unparsable font size does not matter here
		if err == nil {
			out.Original, out.FontSize = original, original
		}
		return out, nil
	}
	if err != nil {
		return out, err
	}
	out.Original = original

	size := style.Round2(out.Original * out.Final)
	if size > out.Original {
		size = math.Floor(out.Original*out.Final*100) / 100
	}
	r.host.SetInlineStyle(el, style.FontSize, style.FormatPX(size))
	out.FontSize = size
	out.Applied = true
	r.log.Debug("fit applied",
		slog.String("element", el.ID()),
		slog.Float64("ratio", out.Final),
		slog.Float64("fontSize", size))
	return out, nil
}

// ComputeRatios measures el and returns how much it must shrink along each
// constrained axis. Inline styles touched while measuring are restored before
// it returns.
func (r *Resolver) ComputeRatios(el *dom.Element) (Ratio, error) {
	maxWidth, err := r.max(el, style.MaxWidth)
	if err != nil {
		return Ratio{}, err
	}
	maxHeight, err := r.max(el, style.MaxHeight)
	if err != nil {
		return Ratio{}, err
	}

	natural, err := r.measureUnconstrained(el)
	if err != nil {
		return Ratio{}, err
	}

	var ratio Ratio
	// Width only shrinks meaningfully when lines cannot wrap; wrapping text
	// reflows instead of overflowing.
	if maxWidth != nil && r.host.ComputedValue(el, style.WhiteSpace) == "nowrap" {
		w := math.Min(*maxWidth/natural.Width, 1)
		ratio.Width = &w
	}
	if maxHeight != nil {
		h, err := r.searchHeight(el, *maxHeight, natural.Height)
		if err != nil {
			return Ratio{}, err
		}
		ratio.Height = &h
	}
	return ratio, nil
}

// measureUnconstrained lifts inline max-width/max-height so the measurement is
// not clamped by the very constraints being fitted.
func (r *Resolver) measureUnconstrained(el *dom.Element) (Rect, error) {
	oldMaxWidth := r.host.InlineStyle(el, style.MaxWidth)
	oldMaxHeight := r.host.InlineStyle(el, style.MaxHeight)
	defer func() {
		r.host.SetInlineStyle(el, style.MaxWidth, oldMaxWidth)
		r.host.SetInlineStyle(el, style.MaxHeight, oldMaxHeight)
	}()
	r.host.SetInlineStyle(el, style.MaxWidth, style.None)
	r.host.SetInlineStyle(el, style.MaxHeight, style.None)

	rect, err := r.host.BoundingRect(el)
	if err != nil {
		return Rect{}, fmt.Errorf("fit: measure %s: %w", el.ID(), err)
	}
	return rect, nil
}

// searchHeight finds the largest ratio in [lowerBound, 1] whose laid out
// height fits maxHeight. Shrinking the font also narrows lines, so height is
// not proportional to font size and has to be probed.
func (r *Resolver) searchHeight(el *dom.Element, maxHeight, naturalHeight float64) (float64, error) {
	lowerBound := math.Min(maxHeight/naturalHeight, 1)
	if lowerBound >= 1 {
		return 1, nil
	}

	fontSize, err := r.px(el, style.FontSize)
	if err != nil {
		return 0, err
	}
	oldFontSize := r.host.InlineStyle(el, style.FontSize)
	oldMaxHeight := r.host.InlineStyle(el, style.MaxHeight)
	defer func() {
		r.host.SetInlineStyle(el, style.FontSize, oldFontSize)
		r.host.SetInlineStyle(el, style.MaxHeight, oldMaxHeight)
	}()

	fits := func(ratio float64) (bool, error) {
		r.host.SetInlineStyle(el, style.FontSize, style.FormatPX(fontSize*ratio))
		r.host.SetInlineStyle(el, style.MaxHeight, style.None)
		rect, err := r.host.BoundingRect(el)
		if err != nil {
			return false, fmt.Errorf("fit: probe %s at %.4f: %w", el.ID(), ratio, err)
		}
		r.log.Debug("fit probe",
			slog.String("element", el.ID()),
			slog.Float64("height", rect.Height),
			slog.Float64("maxHeight", maxHeight),
			slog.Float64("ratio", ratio))
		return rect.Height <= maxHeight, nil
	}

	if r.opts.Strategy == StrategyBisect {
		return r.bisect(lowerBound, fits)
	}
	return r.scan(lowerBound, fits)
}

func (r *Resolver) scan(lowerBound float64, fits func(float64) (bool, error)) (float64, error) {
	step := (1 - lowerBound) / float64(r.opts.Steps)
	for i := 0; i <= r.opts.Steps; i++ {
		ratio := 1 - float64(i)*step
		if i == r.opts.Steps {
			ratio = lowerBound
		}
		ok, err := fits(ratio)
		if err != nil {
			return 0, err
		}
		if ok {
			return ratio, nil
		}
	}
	return lowerBound, nil
}

func (r *Resolver) bisect(lowerBound float64, fits func(float64) (bool, error)) (float64, error) {
	ok, err := fits(1)
	if err != nil || ok {
		return 1, err
	}
	ok, err = fits(lowerBound)
	if err != nil {
		return 0, err
	}
	if !ok {
		return lowerBound, nil
	}
	// lo always fits, hi never does.
	lo, hi := lowerBound, 1.0
	for i := 0; i < r.opts.MaxIterations && hi-lo > r.opts.Tolerance; i++ {
		mid := (lo + hi) / 2
		ok, err := fits(mid)
		if err != nil {
			return 0, err
		}
		if ok {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// max reads a computed max-* value; "none" and non-positive values mean no
// constraint.
func (r *Resolver) max(el *dom.Element, property string) (*float64, error) {
	v := r.host.ComputedValue(el, property)
	if v == "" || v == style.None {
		return nil, nil
	}
	px, err := style.ParsePX(v)
	if err != nil {
		return nil, fmt.Errorf("fit: %s %w", property, err)
	}
	if px <= 0 {
		return nil, nil
	}
	return &px, nil
}

func (r *Resolver) px(el *dom.Element, property string) (float64, error) {
	v, err := style.ParsePX(r.host.ComputedValue(el, property))
	if err != nil {
		return 0, fmt.Errorf("fit: %s %w", property, err)
	}
	return v, nil
}

// IsNotPixels reports whether err came from a non-px length.
func IsNotPixels(err error) bool { return errors.Is(err, ErrNotPixels) }
