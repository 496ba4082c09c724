package pathinfo

import (
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	info, err := Resolve("/data/photos/trip.jpg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if info.Dir != filepath.FromSlash("/data/photos") {
		t.Errorf("Dir = %s", info.Dir)
	}
	if info.Name != "trip.jpg" || info.Stem != "trip" || info.Ext != ".jpg" {
		t.Errorf("Name/Stem/Ext = %s/%s/%s", info.Name, info.Stem, info.Ext)
	}
}

func TestResolveHiddenFile(t *testing.T) {
	info, err := Resolve("/home/user/.gitignore")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if info.Ext != "" {
		t.Errorf("hidden name treated as extension: %q", info.Ext)
	}
	if info.Stem != ".gitignore" {
		t.Errorf("Stem = %q", info.Stem)
	}
}

func TestResolveNoExtension(t *testing.T) {
	info, _ := Resolve("/tmp/README")
	if info.Ext != "" || info.Stem != "README" {
		t.Errorf("Stem/Ext = %q/%q", info.Stem, info.Ext)
	}
}

func TestExtValidator(t *testing.T) {
	v, err := NewExtValidator(`^$|^\.[A-Za-z0-9][A-Za-z0-9_~-]{0,14}$`)
	if err != nil {
		t.Fatalf("NewExtValidator: %v", err)
	}
	cases := []struct {
		ext  string
		want bool
	}{
		{".jpg", true},
		{".tar-gz", true},
		{"", true},
		{".way_too_long_extension", false},
		{"._leading", false},
	}
	for _, c := range cases {
		if got := v.Valid(c.ext); got != c.want {
			t.Errorf("Valid(%q) = %v, want %v", c.ext, got, c.want)
		}
	}
}

func TestExtValidatorEmptyPattern(t *testing.T) {
	v, err := NewExtValidator("")
	if err != nil {
		t.Fatalf("NewExtValidator: %v", err)
	}
	if !v.Valid(".anything") {
		t.Error("empty pattern must accept every extension")
	}
}

func TestExtValidatorBadPattern(t *testing.T) {
	if _, err := NewExtValidator("(unclosed"); err == nil {
		t.Error("expected error for invalid pattern")
	}
}
