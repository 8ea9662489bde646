package style

import (
	"errors"
	"math"
	"testing"
)

// TestPxMmRoundTrip 验证 px↔mm 换算的往返精度（允许极小的浮点误差）。
func TestPxMmRoundTrip(t *testing.T) {
	samples := []float64{0, 0.001, 1, 12, 14.4, 72, 96, 144, 1000}
	for _, px := range samples {
		mm := px * MmPerPx
		back := mm * PxPerMm
		if diff := math.Abs(back - px); diff > 1e-9 {
			t.Fatalf("px→mm→px 往返误差过大: in=%gpx mm=%g back=%g diff=%g", px, mm, back, diff)
		}
	}
}

// TestLengthToPX 覆盖 Length 在常见单位上的转换正确性。
func TestLengthToPX(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1in", 96},
		{"2.54cm", 96},
		{"25.4mm", 96},
		{"12pt", 16},
		{"13.5px", 13.5},
		{"2em", 40},   // font-size 20
		{"50%", 150},  // reference 300
		{"7", 7},      // unit-less is px
		{" 10PX ", 10},
	}
	for _, c := range cases {
		l, err := ParseLength(c.in)
		if err != nil {
			t.Fatalf("解析 %q 失败: %v", c.in, err)
		}
		if got := l.ToPX(20, 300); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("%q 转 px 期望 %g，实际 %g", c.in, c.want, got)
		}
	}
	if _, err := ParseLength("calc(1px + 2px)"); err == nil {
		t.Fatalf("calc 表达式不应被解析")
	}
}

func TestParsePX(t *testing.T) {
	if got, err := ParsePX("12.25px"); err != nil || got != 12.25 {
		t.Fatalf("ParsePX(12.25px) = %g, %v", got, err)
	}
	for _, bad := range []string{"12pt", "none", "", "px", "1e2em", "NaNpx", "nanpx", "Infpx", "-infpx"} {
		if _, err := ParsePX(bad); !errors.Is(err, ErrNotPixels) {
			t.Fatalf("ParsePX(%q) 应返回 ErrNotPixels，实际 %v", bad, err)
		}
	}
}

func TestFormatPX(t *testing.T) {
	if got := FormatPX(13.333333); got != "13.33px" {
		t.Fatalf("FormatPX 期望 13.33px，实际 %s", got)
	}
	if got := FormatPX(14); got != "14.00px" {
		t.Fatalf("FormatPX 期望 14.00px，实际 %s", got)
	}
	if got := PX(12.5); got != "12.5px" {
		t.Fatalf("PX 期望 12.5px，实际 %s", got)
	}
}

func TestDeclarationsSetClear(t *testing.T) {
	d := Declarations{}
	d.Set("Max-Height", " 40px ")
	if got := d.Get(MaxHeight); got != "40px" {
		t.Fatalf("期望 40px，实际 %q", got)
	}
	d.Set(MaxHeight, "")
	if _, ok := d[MaxHeight]; ok {
		t.Fatalf("空值应删除属性")
	}
	d.Set(FontSize, "12px")
	d.Set(WhiteSpace, "nowrap")
	if got := d.String(); got != "font-size: 12px; white-space: nowrap;" {
		t.Fatalf("String 输出不符: %q", got)
	}
}

func TestParseLengthRejectsNonFinite(t *testing.T) {
	for _, bad := range []string{"nan", "NaNpx", "infem", "-Inf%"} {
		if l, err := ParseLength(bad); err == nil {
			t.Fatalf("ParseLength(%q) = %v，应返回错误", bad, l)
		}
	}
}
