// Package rename computes and applies content-address renames for an
// assembled record tree. Directories are never renamed; files move to
// their storage name with a durable recovery record written first.
package rename

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/odal/internal/apperr"
	"github.com/starford/odal/internal/identity"
	"github.com/starford/odal/internal/models"
)

// RecoverySuffix is appended to the storage name to form the recovery
// record's filename.
const RecoverySuffix = ".odal-orig.json"

// Op is one planned rename.
type Op struct {
	Path     string                // current absolute path
	Target   string                // absolute path after rename
	NoOp     bool                  // current name already equals the target
	Recovery models.RecoveryRecord // original-name record, written before the rename
}

// Engine plans and (in apply mode) performs renames.
type Engine struct {
	logger *slog.Logger
	apply  bool
}

// New returns an Engine. apply false keeps every operation a dry run:
// the same plan is computed and exposed without touching the
// filesystem.
func New(logger *slog.Logger, apply bool) *Engine {
	return &Engine{
		logger: logger.With(slog.String("component", "rename")),
		apply:  apply,
	}
}

// Plan walks the assembled tree rooted at rootPath and computes one Op
// per file entry. Generated metadata-only entries and directories are
// skipped; directories are still descended into. Duplicate targets
// within the plan fail immediately: two distinct items may not claim
// one storage name.
func (e *Engine) Plan(rootPath string, entry *models.IndexEntry) ([]Op, error) {
	owners := make(map[string]string)
	var ops []Op
	if err := e.plan(rootPath, entry, owners, &ops); err != nil {
		return nil, err
	}
	return ops, nil
}

func (e *Engine) plan(path string, entry *models.IndexEntry, owners map[string]string, ops *[]Op) error {
	if entry.Kind == models.KindDirectory {
		for _, child := range entry.Children {
			if err := e.plan(filepath.Join(path, child.Name.Text), child, owners, ops); err != nil {
				return err
			}
		}
		return nil
	}

	if strings.HasPrefix(entry.Identity, identity.PrefixGenerated) {
		return nil
	}
	// Recovery records stay under their fixed name so they remain
	// correlated with the item they describe.
	if strings.HasSuffix(entry.Name.Text, RecoverySuffix) {
		return nil
	}
	// A name-derived identity would change with the rename itself,
	// so re-running could never converge. Leave such items alone.
	if entry.NameDerived {
		return nil
	}

	ext := filepath.Ext(entry.Name.Text)
	if ext == entry.Name.Text {
		ext = ""
	}
	storageName := identity.StorageName(entry, ext)
	target := filepath.Join(filepath.Dir(path), storageName)

	if owner, taken := owners[target]; taken && owner != path {
		return fmt.Errorf("rename: %s and %s both map to %s: %w",
			owner, path, storageName, apperr.ErrCollision)
	}
	owners[target] = path

	*ops = append(*ops, Op{
		Path:   path,
		Target: target,
		NoOp:   entry.Name.Text == storageName,
		Recovery: models.RecoveryRecord{
			Name:        entry.Name,
			Identity:    entry.Identity,
			StorageName: storageName,
			RenamedAt:   time.Now().UTC(),
		},
	})
	return nil
}

// Execute performs the plan. In dry-run mode it only logs the would-be
// renames. In apply mode each op writes its recovery record durably,
// then renames; a target occupied by a different file fails that op
// explicitly rather than overwrite. Returns the number of renames
// performed.
func (e *Engine) Execute(ops []Op) (int, error) {
	renamed := 0
	for _, op := range ops {
		if op.NoOp {
			e.logger.Debug("already at storage name", slog.String("path", op.Path))
			continue
		}
		if !e.apply {
			e.logger.Info("dry-run",
				slog.String("path", op.Path),
				slog.String("target", op.Target))
			continue
		}
		if err := e.applyOp(op); err != nil {
			return renamed, err
		}
		renamed++
	}
	return renamed, nil
}

func (e *Engine) applyOp(op Op) error {
	if st, err := os.Lstat(op.Target); err == nil {
		cur, curErr := os.Lstat(op.Path)
		if curErr != nil || !os.SameFile(st, cur) {
			return fmt.Errorf("rename: target %s exists: %w", op.Target, apperr.ErrCollision)
		}
		// Same inode under both names: the rename already happened.
		return nil
	}

	if err := e.writeRecovery(op); err != nil {
		return err
	}
	if err := os.Rename(op.Path, op.Target); err != nil {
		return fmt.Errorf("rename: %s: %w", op.Path, err)
	}
	e.logger.Info("renamed",
		slog.String("path", op.Path),
		slog.String("target", op.Target))
	return nil
}

// writeRecovery durably persists the original name beside the item
// before the rename happens; the rename is otherwise irreversible on
// disk.
func (e *Engine) writeRecovery(op Op) error {
	data, err := json.MarshalIndent(op.Recovery, "", "  ")
	if err != nil {
		return fmt.Errorf("rename: encode recovery: %w", err)
	}

	path := op.Target + RecoverySuffix
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("rename: create recovery %s: %w", path, err)
	}
	success := false
	defer func() {
		if !success {
			_ = f.Close()
			_ = os.Remove(path)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("rename: write recovery: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("rename: fsync recovery: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("rename: close recovery: %w", err)
	}
	success = true
	return nil
}
