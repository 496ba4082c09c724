// Package indexer assembles the content-addressed record tree for a
// file or directory. Each item moves through discover, classify,
// hash/stat, metadata extraction, sidecar merge, and assembly; a
// directory finalizes only after all of its children reached a
// terminal state.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/odal/internal/apperr"
	"github.com/starford/odal/internal/exiftool"
	"github.com/starford/odal/internal/hasher"
	"github.com/starford/odal/internal/identity"
	"github.com/starford/odal/internal/models"
	"github.com/starford/odal/internal/pathinfo"
	"github.com/starford/odal/internal/sidecar"
	"github.com/starford/odal/internal/stamps"
)

// Progress receives discrete progress signals. Implementations must be
// safe for concurrent use. A nil Progress is valid and ignored.
type Progress interface {
	Discovered(total int)
	Completed(total int)
}

// Config wires the collaborators and policy for one Indexer.
type Config struct {
	Hashes       *hasher.Set
	Identity     *identity.Generator
	Classifier   *sidecar.Classifier
	Extractor    *exiftool.Extractor // nil disables embedded metadata
	ExtValidator *pathinfo.ExtValidator

	// Recurse descends into subdirectories; a future depth limit can
	// replace this flag without changing the call contract.
	Recurse bool
	// Workers bounds parallel processing of sibling files. Values
	// below 1 mean sequential.
	Workers int
	// Exclude lists glob patterns matched against base names.
	Exclude []string

	// ConsumeSidecars queues attached sidecar files for deletion. The
	// queue is exposed via PendingDeletions and applied by the caller
	// only after the output tree has been durably written.
	ConsumeSidecars bool
	// RetainSidecarEntries keeps attached sidecars visible in the tree
	// as metadata-only records.
	RetainSidecarEntries bool

	Logger   *slog.Logger
	Progress Progress
}

// Indexer drives one run. It is not reusable across runs.
type Indexer struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	discovered int
	complete   int
	degraded   int
	skipped    int
	deletions  []string
}

// New validates the configuration and returns an Indexer.
func New(cfg Config) (*Indexer, error) {
	if cfg.Hashes == nil || cfg.Identity == nil || cfg.Classifier == nil {
		return nil, fmt.Errorf("indexer: hasher, identity generator, and classifier are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Indexer{
		cfg:    cfg,
		logger: cfg.Logger.With(slog.String("component", "indexer")),
	}, nil
}

// Run indexes root and returns the assembled tree plus the run report.
// A wholly inaccessible root is fatal: no record is produced. Item and
// field failures are absorbed into the report.
func (ix *Indexer) Run(ctx context.Context, root string) (*models.IndexEntry, *models.Report, error) {
	start := time.Now()

	info, err := pathinfo.Resolve(root)
	if err != nil {
		return nil, nil, err
	}
	st, err := os.Lstat(info.Abs)
	if err != nil {
		return nil, nil, fmt.Errorf("indexer: target inaccessible: %w", err)
	}

	var entry *models.IndexEntry
	if st.IsDir() {
		entry, err = ix.processDirectory(ctx, info.Abs, info.Name, "", nil)
	} else {
		listing, _ := readNames(info.Dir)
		entry, err = ix.processFile(ctx, info.Dir, info.Name, st, listing, nil)
	}
	if err != nil {
		return nil, nil, err
	}
	if entry == nil {
		return nil, nil, fmt.Errorf("indexer: target excluded or skipped: %s", info.Abs)
	}

	report := &models.Report{
		Root:       info.Abs,
		Discovered: ix.discovered,
		Complete:   ix.complete,
		Degraded:   ix.degraded,
		Skipped:    ix.skipped,
		Elapsed:    time.Since(start),
	}
	return entry, report, nil
}

// PendingDeletions returns the sidecar files queued by consume mode.
// The caller applies them only after the output destination holds the
// full tree; a cancelled run discards the queue wholesale.
func (ix *Indexer) PendingDeletions() []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return append([]string(nil), ix.deletions...)
}

// processDirectory assembles a directory record: its own two-layer
// identity first, then all children, then aggregation.
func (ix *Indexer) processDirectory(ctx context.Context, path, name, parentName string, parent *models.ParentRef) (*models.IndexEntry, error) {
	ix.markDiscovered(path)

	st, err := os.Lstat(path)
	if err != nil {
		ix.markSkipped(path, err)
		return nil, nil
	}

	entry := &models.IndexEntry{
		Kind:     models.KindDirectory,
		Identity: ix.cfg.Identity.ForDirectory(name, parentName),
		Name: models.Name{
			Text: name,
			Hash: ix.cfg.Identity.NameHash(name),
		},
		Timestamps: stamps.FromInfo(st),
		Parent:     parent,
		State:      models.StateComplete,
	}

	listing, err := readNames(path)
	if err != nil {
		// The directory itself is stat-able but unlistable. Emit a
		// degraded record with no children rather than dropping it.
		ix.logger.Warn("directory unlistable",
			slog.String("path", path), slog.String("error", err.Error()))
		entry.State = models.StateDegraded
		ix.markCompleted(entry.State)
		return entry, nil
	}

	// The directory's own sidecars live in its listing under fixed
	// names (metadata.json, folder.jpg, ...).
	claimed := make(map[string]bool, len(listing))
	for _, cand := range listing {
		rule, ok := ix.cfg.Classifier.Classify(cand, models.KindDirectory, name)
		if !ok {
			continue
		}
		claimed[cand] = true
		meta, intact := ix.cfg.Classifier.Attach(path, sidecar.Match{Rule: rule, Name: cand})
		entry.Metadata = append(entry.Metadata, meta)
		if !intact {
			entry.State = models.StateDegraded
		}
		ix.queueConsume(filepath.Join(path, cand))
	}

	files, dirs := ix.partition(path, listing, claimed)

	children, err := ix.processFiles(ctx, path, entry, listing, claimed, files)
	if err != nil {
		return nil, err
	}

	if ix.cfg.Recurse {
		for _, d := range dirs {
			// Cancellation is polled at item boundaries only.
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			child, err := ix.processDirectory(ctx, filepath.Join(path, d), d, name, &models.ParentRef{
				Identity: entry.Identity,
				NameHash: entry.Name.Hash,
			})
			if err != nil {
				return nil, err
			}
			if child != nil {
				children = append(children, child)
			}
		}
	}

	sort.Slice(children, func(i, j int) bool {
		return children[i].Name.Text < children[j].Name.Text
	})
	entry.Children = children
	ix.markCompleted(entry.State)
	return entry, nil
}

// processFiles runs the file children of one directory on a bounded
// worker pool. The parent aggregates only after the group has joined;
// every record a worker produces is whole, never partially hashed or
// partially merged.
func (ix *Indexer) processFiles(ctx context.Context, dir string, parent *models.IndexEntry, listing []string, claimed map[string]bool, files []string) ([]*models.IndexEntry, error) {
	parentRef := &models.ParentRef{
		Identity: parent.Identity,
		NameHash: parent.Name.Hash,
	}

	// Claim sidecars per child before dispatch so the pool never races
	// on the claim table. Children are visited in sorted order; a name
	// matching several stems belongs to the first claimant.
	matches := make(map[string][]sidecar.Match, len(files))
	for _, f := range files {
		if claimed[f] {
			continue
		}
		for _, m := range ix.cfg.Classifier.FindAll(listing, f, models.KindFile, stemOf(f)) {
			if claimed[m.Name] {
				continue
			}
			claimed[m.Name] = true
			matches[f] = append(matches[f], m)
		}
	}

	// A claimer can itself be claimed by a later sibling (a.en.srt
	// claims a.en.txt, then a.mp4 claims a.en.srt). Its dependents
	// would silently vanish from the tree: release them so every item
	// still reaches a terminal state as an ordinary child.
	for _, f := range files {
		if !claimed[f] {
			continue
		}
		for _, m := range matches[f] {
			delete(claimed, m.Name)
		}
		delete(matches, f)
	}

	results := make([]*models.IndexEntry, len(files))
	g, gCtx := errgroup.WithContext(ctx)
	workers := ix.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, f := range files {
		if claimed[f] {
			if ix.cfg.RetainSidecarEntries {
				results[i] = ix.retainedEntry(dir, f, parentRef)
			}
			continue
		}
		// Item boundary: do not start another sibling once cancelled.
		if err := gCtx.Err(); err != nil {
			break
		}
		i, f := i, f
		g.Go(func() error {
			ix.markDiscovered(f)
			st, err := os.Lstat(filepath.Join(dir, f))
			if err != nil {
				ix.markSkipped(f, err)
				return nil
			}
			entry, err := ix.assembleFile(gCtx, dir, f, st, matches[f], parentRef)
			if err != nil {
				return err
			}
			results[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]*models.IndexEntry, 0, len(results))
	for _, e := range results {
		if e != nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// processFile indexes a single file that is itself the run target.
func (ix *Indexer) processFile(ctx context.Context, dir, name string, st os.FileInfo, listing []string, parent *models.ParentRef) (*models.IndexEntry, error) {
	ix.markDiscovered(name)
	if ix.excluded(name) {
		ix.markSkipped(name, apperr.ErrExcluded)
		return nil, nil
	}
	matches := ix.cfg.Classifier.FindAll(listing, name, models.KindFile, stemOf(name))
	return ix.assembleFile(ctx, dir, name, st, matches, parent)
}

// assembleFile produces one complete (or degraded) file record. All
// failure paths below the stat are field-level: they null the affected
// field and keep the record.
func (ix *Indexer) assembleFile(ctx context.Context, dir, name string, st os.FileInfo, matches []sidecar.Match, parent *models.ParentRef) (*models.IndexEntry, error) {
	path := filepath.Join(dir, name)

	entry := &models.IndexEntry{
		Kind: models.KindFile,
		Name: models.Name{
			Text: name,
			Hash: ix.cfg.Identity.NameHash(name),
		},
		Size:       st.Size(),
		Timestamps: stamps.FromInfo(st),
		Parent:     parent,
		State:      models.StateComplete,
	}

	// Hash/stat. A symbolic link or unreadable content falls back to a
	// name-derived identity with absent content hashes.
	if st.Mode()&os.ModeSymlink != 0 {
		entry.Identity = ix.cfg.Identity.ForFileName(name)
		entry.NameDerived = true
	} else {
		hashes, err := ix.cfg.Hashes.SumFile(path)
		if err != nil {
			ix.logger.Warn("content unreadable, identity derived from name",
				slog.String("path", path), slog.String("error", err.Error()))
			entry.Identity = ix.cfg.Identity.ForFileName(name)
			entry.NameDerived = true
			entry.State = models.StateDegraded
		} else {
			entry.Hashes = hashes
			id, err := ix.cfg.Identity.ForFile(hashes)
			if err != nil {
				return nil, err
			}
			entry.Identity = id
		}
	}

	ext := filepath.Ext(name)
	if ix.cfg.ExtValidator != nil && !ix.cfg.ExtValidator.Valid(ext) {
		entry.Metadata = append(entry.Metadata, models.MetadataEntry{
			Origin:  models.OriginGenerated,
			Source:  "extension-check",
			Payload: map[string]interface{}{"extension": ext, "valid": false},
		})
	}

	// Embedded metadata. When the tool is absent the field stays null
	// on every record with a single run-wide warning; a per-file crash
	// nulls only this record's field and degrades it.
	if ix.cfg.Extractor != nil && !ix.cfg.Extractor.Excluded(ext) {
		meta := models.MetadataEntry{
			Origin: models.OriginEmbedded,
			Source: "exiftool",
		}
		if ix.cfg.Extractor.Available() {
			tags, err := ix.cfg.Extractor.Extract(ctx, path)
			if err != nil {
				ix.logger.Warn("embedded metadata failed",
					slog.String("path", path), slog.String("error", err.Error()))
				entry.State = models.StateDegraded
			} else {
				meta.Payload = tags
			}
		}
		entry.Metadata = append(entry.Metadata, meta)
	}

	// Sidecar merge.
	for _, m := range matches {
		meta, intact := ix.cfg.Classifier.Attach(dir, m)
		entry.Metadata = append(entry.Metadata, meta)
		if !intact {
			entry.State = models.StateDegraded
		}
		if intact && m.Rule.Format == sidecar.FormatHashList {
			ix.crossCheck(entry, m.Name, meta.Payload)
		}
		ix.queueConsume(filepath.Join(dir, m.Name))
	}

	ix.markCompleted(entry.State)
	return entry, nil
}

// crossCheck compares a hash-list sidecar against computed digests.
// A disagreement degrades the record with a generated entry describing
// it; computed hashes are never overwritten.
func (ix *Indexer) crossCheck(entry *models.IndexEntry, sidecarName string, payload interface{}) {
	declared, ok := payload.(models.HashSet)
	if !ok || entry.Hashes == nil {
		return
	}
	for alg, want := range declared {
		got, computed := entry.Hashes[alg]
		if !computed || got == want {
			continue
		}
		entry.Metadata = append(entry.Metadata, models.MetadataEntry{
			Origin: models.OriginGenerated,
			Source: "hash-check",
			Payload: map[string]interface{}{
				"algorithm": alg,
				"declared":  want,
				"computed":  got,
				"sidecar":   sidecarName,
			},
		})
		entry.State = models.StateDegraded
		ix.logger.Warn("hash cross-check mismatch",
			slog.String("name", entry.Name.Text),
			slog.String("algorithm", alg),
			slog.String("sidecar", sidecarName))
	}
}

// retainedEntry synthesizes a metadata-only record for a sidecar kept
// visible in the tree.
func (ix *Indexer) retainedEntry(dir, name string, parent *models.ParentRef) *models.IndexEntry {
	entry := &models.IndexEntry{
		Kind:     models.KindFile,
		Identity: ix.cfg.Identity.ForGenerated(name),
		Name: models.Name{
			Text: name,
			Hash: ix.cfg.Identity.NameHash(name),
		},
		Parent: parent,
		State:  models.StateComplete,
	}
	if st, err := os.Lstat(filepath.Join(dir, name)); err == nil {
		entry.Size = st.Size()
		entry.Timestamps = stamps.FromInfo(st)
	}
	return entry
}

// partition splits a listing into candidate file and directory names,
// applying exclusion filters. Sidecars already claimed by the directory
// itself are left out.
func (ix *Indexer) partition(dir string, listing []string, claimed map[string]bool) (files, dirs []string) {
	for _, name := range listing {
		if claimed[name] && !ix.cfg.RetainSidecarEntries {
			continue
		}
		if ix.excluded(name) {
			ix.markDiscovered(name)
			ix.markSkipped(name, apperr.ErrExcluded)
			continue
		}
		st, err := os.Lstat(filepath.Join(dir, name))
		if err != nil {
			ix.markDiscovered(name)
			ix.markSkipped(name, err)
			continue
		}
		if st.IsDir() {
			dirs = append(dirs, name)
		} else {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	sort.Strings(dirs)
	return files, dirs
}

func (ix *Indexer) excluded(name string) bool {
	for _, pattern := range ix.cfg.Exclude {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (ix *Indexer) queueConsume(path string) {
	if !ix.cfg.ConsumeSidecars {
		return
	}
	ix.mu.Lock()
	ix.deletions = append(ix.deletions, path)
	ix.mu.Unlock()
}

func (ix *Indexer) markDiscovered(name string) {
	ix.mu.Lock()
	ix.discovered++
	total := ix.discovered
	ix.mu.Unlock()
	if ix.cfg.Progress != nil {
		ix.cfg.Progress.Discovered(total)
	}
	ix.logger.Debug("discovered", slog.String("name", name))
}

func (ix *Indexer) markCompleted(state models.State) {
	ix.mu.Lock()
	switch state {
	case models.StateDegraded:
		ix.degraded++
	default:
		ix.complete++
	}
	total := ix.complete + ix.degraded
	ix.mu.Unlock()
	if ix.cfg.Progress != nil {
		ix.cfg.Progress.Completed(total)
	}
}

func (ix *Indexer) markSkipped(name string, err error) {
	ix.mu.Lock()
	ix.skipped++
	ix.mu.Unlock()
	ix.logger.Warn("skipped", slog.String("name", name), slog.String("reason", err.Error()))
}

func readNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func stemOf(name string) string {
	ext := filepath.Ext(name)
	if ext == name {
		return name
	}
	return name[:len(name)-len(ext)]
}
