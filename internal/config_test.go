package internal

import (
	"strings"
	"testing"

	"github.com/starford/odal/internal/hasher"
	"github.com/starford/odal/internal/sidecar"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should pass: %v", err)
	}
}

func TestHashingConfig_UnknownAlgorithm(t *testing.T) {
	cfg := HashingConfig{Algorithms: []string{"sha256", "md4"}, Identity: "sha256"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown algorithm should fail validation")
	}
}

func TestHashingConfig_TooFewAlgorithms(t *testing.T) {
	cfg := HashingConfig{Algorithms: []string{"sha256"}, Identity: "sha256"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("a single algorithm should fail: two baselines are required")
	}
}

func TestHashingConfig_ThirdAlgorithm(t *testing.T) {
	cfg := HashingConfig{
		Algorithms: []string{hasher.SHA1, hasher.SHA256, hasher.BLAKE3},
		Identity:   hasher.BLAKE3,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("three algorithms should pass: %v", err)
	}
}

func TestHashingConfig_IdentityNotActive(t *testing.T) {
	cfg := HashingConfig{Algorithms: []string{hasher.SHA1, hasher.SHA256}, Identity: hasher.BLAKE3}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("identity outside the active set should fail")
	}
	if !strings.Contains(err.Error(), "not in the active set") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTraverseConfig_WorkerBounds(t *testing.T) {
	cfg := TraverseConfig{Workers: 0}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero workers (unset) should pass: %v", err)
	}
	cfg.Workers = 10000
	if err := cfg.Validate(); err == nil {
		t.Fatal("absurd worker count should fail")
	}
}

func TestSidecarConfig_TableFallback(t *testing.T) {
	cfg := SidecarConfig{}
	if len(cfg.Table()) == 0 {
		t.Fatal("empty rules must fall back to the built-in table")
	}

	custom := []sidecar.Rule{{
		TypeName:   "Only",
		Pattern:    `^{base}\.json$`,
		ParentKind: "file",
		Format:     sidecar.FormatJSON,
	}}
	cfg.Rules = custom
	if got := cfg.Table(); len(got) != 1 || got[0].TypeName != "Only" {
		t.Errorf("Table() = %+v", got)
	}
}

func TestSidecarConfig_InvalidRule(t *testing.T) {
	cfg := SidecarConfig{Rules: []sidecar.Rule{{
		TypeName:   "Bad",
		Pattern:    "(",
		ParentKind: "file",
		Format:     sidecar.FormatJSON,
	}}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("uncompilable rule should fail validation")
	}
}

func TestOutputConfig_Durable(t *testing.T) {
	if (&OutputConfig{}).Durable() {
		t.Error("stdout destination must not count as durable")
	}
	if !(&OutputConfig{Path: "/tmp/out.json"}).Durable() {
		t.Error("file destination must count as durable")
	}
}
