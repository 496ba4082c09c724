package rename

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/odal/internal/apperr"
	"github.com/starford/odal/internal/hasher"
	"github.com/starford/odal/internal/identity"
	"github.com/starford/odal/internal/indexer"
	"github.com/starford/odal/internal/models"
	"github.com/starford/odal/internal/sidecar"
	"github.com/starford/odal/internal/testutil"
)

func indexTree(t *testing.T, root string) *models.IndexEntry {
	t.Helper()
	hashes, _ := hasher.New([]string{hasher.SHA1, hasher.SHA256})
	ident, _ := identity.New(hasher.SHA256, false)
	classifier, _ := sidecar.NewClassifier(sidecar.DefaultRules(), testutil.Logger())
	ix, err := indexer.New(indexer.Config{
		Hashes:     hashes,
		Identity:   ident,
		Classifier: classifier,
		Recurse:    true,
		Workers:    1,
		Logger:     testutil.Logger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	tree, _, err := ix.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	return tree
}

func TestPlanComputesStorageNames(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{
		"photo.jpg": "jpeg bytes",
	})
	tree := indexTree(t, root)

	e := New(testutil.Logger(), false)
	ops, err := e.Plan(root, tree)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("ops = %d, want 1", len(ops))
	}

	op := ops[0]
	digest, _ := hasher.Sum(hasher.SHA256, []byte("jpeg bytes"))
	wantName := "y" + digest + ".jpg"
	if filepath.Base(op.Target) != wantName {
		t.Errorf("target = %s, want %s", filepath.Base(op.Target), wantName)
	}
	if op.Recovery.Name.Text != "photo.jpg" {
		t.Errorf("recovery name = %s, want photo.jpg", op.Recovery.Name.Text)
	}
	if op.NoOp {
		t.Error("fresh file must not be a no-op")
	}
}

func TestDirectoriesNeverRenamed(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{
		"album/photo.jpg": "bytes",
	})
	tree := indexTree(t, root)

	e := New(testutil.Logger(), false)
	ops, err := e.Plan(root, tree)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for _, op := range ops {
		st, err := os.Lstat(op.Path)
		if err != nil {
			t.Fatalf("Lstat %s: %v", op.Path, err)
		}
		if st.IsDir() {
			t.Errorf("plan contains a directory: %s", op.Path)
		}
	}
	if len(ops) != 1 {
		t.Errorf("ops = %d, want 1 (file inside the directory only)", len(ops))
	}
}

func TestDryRunTouchesNothing(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{
		"photo.jpg": "bytes",
	})
	tree := indexTree(t, root)

	e := New(testutil.Logger(), false)
	ops, _ := e.Plan(root, tree)
	renamed, err := e.Execute(ops)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if renamed != 0 {
		t.Errorf("renamed = %d in dry-run", renamed)
	}
	if _, err := os.Stat(filepath.Join(root, "photo.jpg")); err != nil {
		t.Error("original file must be untouched")
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 1 {
		t.Errorf("dry-run created files: %d entries", len(entries))
	}
}

func TestApplyRenamesAndWritesRecovery(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{
		"photo.jpg": "jpeg bytes",
	})
	tree := indexTree(t, root)

	e := New(testutil.Logger(), true)
	ops, _ := e.Plan(root, tree)
	renamed, err := e.Execute(ops)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if renamed != 1 {
		t.Errorf("renamed = %d, want 1", renamed)
	}

	target := ops[0].Target
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("target missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "photo.jpg")); !os.IsNotExist(err) {
		t.Error("original name must be gone")
	}

	raw, err := os.ReadFile(target + RecoverySuffix)
	if err != nil {
		t.Fatalf("recovery record missing: %v", err)
	}
	var rec models.RecoveryRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("recovery decode: %v", err)
	}
	if rec.Name.Text != "photo.jpg" {
		t.Errorf("recovery name = %s", rec.Name.Text)
	}
	if !strings.HasPrefix(rec.Identity, "y") {
		t.Errorf("recovery identity = %s", rec.Identity)
	}
}

func TestRenameIdempotent(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{
		"photo.jpg": "jpeg bytes",
	})

	e := New(testutil.Logger(), true)
	ops, _ := e.Plan(root, indexTree(t, root))
	if _, err := e.Execute(ops); err != nil {
		t.Fatalf("first Execute: %v", err)
	}

	// Second full pass over the renamed tree.
	ops2, err := e.Plan(root, indexTree(t, root))
	if err != nil {
		t.Fatalf("second Plan: %v", err)
	}
	renamed, err := e.Execute(ops2)
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if renamed != 0 {
		t.Errorf("second run renamed %d items, want 0", renamed)
	}
	for _, op := range ops2 {
		if filepath.Base(op.Path) == filepath.Base(op.Target) && !op.NoOp {
			t.Errorf("op for %s should be a no-op", op.Path)
		}
	}
}

func TestCollisionInPlan(t *testing.T) {
	// Two distinct files with identical content in one directory map to
	// the same storage name.
	root := testutil.TempTree(t, map[string]string{
		"first.jpg":  "same bytes",
		"second.jpg": "same bytes",
	})
	e := New(testutil.Logger(), true)
	_, err := e.Plan(root, indexTree(t, root))
	if err == nil {
		t.Fatal("expected collision error")
	}
	if !errors.Is(err, apperr.ErrCollision) {
		t.Errorf("err = %v, want ErrCollision", err)
	}
}

func TestCollisionOnDisk(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{
		"photo.jpg": "jpeg bytes",
	})
	tree := indexTree(t, root)
	e := New(testutil.Logger(), true)
	ops, _ := e.Plan(root, tree)

	// Occupy the target with an unrelated file.
	if err := os.WriteFile(ops[0].Target, []byte("squatter"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := e.Execute(ops)
	if err == nil {
		t.Fatal("expected collision error, not an overwrite")
	}
	if !errors.Is(err, apperr.ErrCollision) {
		t.Errorf("err = %v, want ErrCollision", err)
	}
	data, _ := os.ReadFile(ops[0].Target)
	if string(data) != "squatter" {
		t.Error("occupied target must never be overwritten")
	}
}

func TestNameDerivedEntriesSkipped(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{"real.txt": "content"})
	if err := os.Symlink("/nowhere", filepath.Join(root, "dangling.bin")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	e := New(testutil.Logger(), false)
	ops, err := e.Plan(root, indexTree(t, root))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for _, op := range ops {
		if filepath.Base(op.Path) == "dangling.bin" {
			t.Error("name-derived entries must not be planned")
		}
	}
}

func TestGeneratedEntriesSkipped(t *testing.T) {
	entry := &models.IndexEntry{
		Kind:     models.KindDirectory,
		Identity: "xroot",
		Name:     models.Name{Text: "root"},
		Children: []*models.IndexEntry{
			{
				Kind:     models.KindFile,
				Identity: "zdeadbeef",
				Name:     models.Name{Text: "meta.json"},
			},
		},
	}
	e := New(testutil.Logger(), false)
	ops, err := e.Plan("/tmp/root", entry)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("generated entries must not be planned: %v", ops)
	}
}
