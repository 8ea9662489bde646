package binding

import "testing"

func sampleData() map[string]any {
	return map[string]any{
		"user": map[string]any{
			"name": "Ada",
			"tags": []any{"admin", "ops"},
		},
		"labels": map[string]string{"title": "Badge"},
		"count":  3,
	}
}

func TestInterpolate(t *testing.T) {
	data := sampleData()
	cases := []struct {
		in, want string
	}{
		{"Hello, ${user.name}!", "Hello, Ada!"},
		{"${ user.tags[1] }", "ops"},
		{"${labels.title} x${count}", "Badge x3"},
		{"${user.missing}", "${user.missing}"},
		{"${user.tags[9]}", "${user.tags[9]}"},
		{"plain", "plain"},
	}
	for _, c := range cases {
		if got := Interpolate(c.in, data); got != c.want {
			t.Fatalf("Interpolate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	if got := Interpolate("${user.name}", nil); got != "${user.name}" {
		t.Fatalf("nil data should keep placeholders, got %q", got)
	}
}

func TestChanged(t *testing.T) {
	prev := sampleData()
	next := sampleData()
	next["user"].(map[string]any)["name"] = "Grace"

	if !Changed("Hello, ${user.name}", next, prev) {
		t.Fatalf("name change should be reported")
	}
	if Changed("${labels.title}", next, prev) {
		t.Fatalf("unrelated path must not be reported as changed")
	}
	if Changed("static text", next, nil) {
		t.Fatalf("templates without bindings never change")
	}
}

func TestPaths(t *testing.T) {
	got := Paths("${a.b} and ${ c[0] } and ${}")
	if len(got) != 2 || got[0] != "a.b" || got[1] != "c[0]" {
		t.Fatalf("unexpected paths: %v", got)
	}
	if HasBindings("none here") {
		t.Fatalf("HasBindings should be false")
	}
}
