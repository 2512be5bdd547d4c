package lang

import "testing"

func TestForExtension(t *testing.T) {
	cases := map[string]Language{
		".ts":   TypeScript,
		".tsx":  TypeScript,
		".js":   JavaScript,
		".mjs":  JavaScript,
		".cjs":  JavaScript,
		".py":   Python,
		".java": Java,
	}
	for ext, want := range cases {
		got, ok := ForExtension(ext)
		if !ok || got != want {
			t.Errorf("ForExtension(%q) = %v, %v; want %v", ext, got, ok, want)
		}
	}
	if _, ok := ForExtension(".go"); ok {
		t.Errorf("ForExtension(.go) should be unsupported")
	}
}

func TestExtensionsNonEmpty(t *testing.T) {
	if len(Extensions()) < 8 {
		t.Fatalf("Extensions() = %d entries", len(Extensions()))
	}
}
