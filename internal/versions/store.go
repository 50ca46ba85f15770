package versions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tailor/internal/logging"
	"tailor/internal/services"
)

// ErrReadOnly is returned when registering into a store opened read-only.
var ErrReadOnly = errors.New("version store is read-only")

// Version is one concrete file in an asset's edit lineage.
type Version struct {
	ID        string
	Asset     string
	Filename  string
	Parent    string
	Operation string
	SizeBytes int64
	CreatedAt time.Time
	Seq       int64
}

// IsRoot reports whether v is an uploaded original.
func (v Version) IsRoot() bool { return v.Parent == "" }

// Options configures Open.
type Options struct {
	// Dir is the media directory holding every root and derived file.
	Dir string
	// ManifestPath enables SQLite persistence of lineage. Empty keeps the
	// store in memory and rebuilds lineage from filenames on each open.
	ManifestPath string
	// Suffixes maps filename suffixes to operation ids so files found on
	// disk without a manifest entry can be adopted as derived versions.
	Suffixes map[string]string
	// ReadOnly opens the manifest without writing to it. Stale entries are
	// hidden and unknown files adopted in memory only; registration fails.
	ReadOnly bool
	Logger   *slog.Logger
	Now      func() time.Time
}

// Store is the single source of truth for version filenames. Versions live in
// one arena slice; parents holds each entry's parent index (-1 for roots).
type Store struct {
	mu       sync.RWMutex
	dir      string
	entries  []Version
	parents  []int
	byName   map[string]int
	byAsset  map[string][]int
	nextSeq  int64
	manifest *manifest
	readOnly bool
	suffixes map[string]string
	logger   *slog.Logger
	now      func() time.Time
}

// Open loads the manifest (when configured) and reconciles it with the media
// directory: entries whose files vanished are dropped, and files the manifest
// does not know are adopted. A read-only store does both in memory only.
func Open(ctx context.Context, opts Options) (*Store, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return nil, fmt.Errorf("%w: media directory is required", services.ErrConfiguration)
	}
	if !opts.ReadOnly {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure media directory: %w", err)
		}
	}
	s := &Store{
		dir:      dir,
		byName:   make(map[string]int),
		byAsset:  make(map[string][]int),
		nextSeq:  1,
		readOnly: opts.ReadOnly,
		suffixes: opts.Suffixes,
		logger:   logging.NewComponentLogger(opts.Logger, "versions"),
		now:      opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	if path := strings.TrimSpace(opts.ManifestPath); path != "" {
		openDB := openManifest
		if s.readOnly {
			openDB = openManifestReadOnly
		}
		m, err := openDB(ctx, path)
		if err != nil {
			return nil, err
		}
		s.manifest = m
		if m != nil {
			if err := s.loadManifest(ctx); err != nil {
				_ = m.close()
				return nil, err
			}
		}
	}
	if err := s.adoptUnknownFiles(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the manifest database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.manifest.close()
}

// ReadOnly reports whether the store was opened without write access.
func (s *Store) ReadOnly() bool { return s.readOnly }

// Dir returns the media directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the absolute storage path of v.
func (s *Store) Path(v Version) string { return filepath.Join(s.dir, v.Filename) }

// RegisterRoot records an uploaded original. asset defaults to filename.
func (s *Store) RegisterRoot(ctx context.Context, asset, filename string, sizeBytes int64) (Version, error) {
	if err := ValidateFilename(filename); err != nil {
		return Version{}, err
	}
	if strings.TrimSpace(asset) == "" {
		asset = filename
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, exists := s.byName[filename]; exists {
		return s.entries[idx], services.Wrap(services.ErrDuplicateVersion, "versions", "register root", filename, nil)
	}
	if _, exists := s.byAsset[asset]; exists {
		return Version{}, services.Wrap(services.ErrDuplicateVersion, "versions", "register root", "asset "+asset+" already has a root", nil)
	}
	v := Version{
		ID:        uuid.NewString(),
		Asset:     asset,
		Filename:  filename,
		SizeBytes: sizeBytes,
		CreatedAt: s.now().UTC(),
	}
	return s.commitLocked(ctx, v, -1)
}

// RegisterDerived records the output of applying operation to parent. When
// filename is already registered, the existing version is returned together
// with an error wrapping ErrDuplicateVersion; the first registration wins.
func (s *Store) RegisterDerived(ctx context.Context, parent Version, operation, filename string, sizeBytes int64) (Version, error) {
	if err := ValidateFilename(filename); err != nil {
		return Version{}, err
	}
	if strings.TrimSpace(operation) == "" {
		return Version{}, fmt.Errorf("%w: operation is required for derived version %s", services.ErrValidation, filename)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, exists := s.byName[filename]; exists {
		return s.entries[idx], services.Wrap(services.ErrDuplicateVersion, "versions", "register derived", filename, nil)
	}
	parentIdx, ok := s.byName[parent.Filename]
	if !ok {
		return Version{}, services.Wrap(services.ErrVersionNotFound, "versions", "register derived", "parent "+parent.Filename, nil)
	}
	v := Version{
		ID:        uuid.NewString(),
		Asset:     s.entries[parentIdx].Asset,
		Filename:  filename,
		Parent:    parent.Filename,
		Operation: operation,
		SizeBytes: sizeBytes,
		CreatedAt: s.now().UTC(),
	}
	return s.commitLocked(ctx, v, parentIdx)
}

// Get returns the version stored under filename.
func (s *Store) Get(filename string) (Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.byName[filename]; ok {
		return s.entries[idx], nil
	}
	return Version{}, services.Wrap(services.ErrVersionNotFound, "versions", "get", filename, nil)
}

// History returns every version of asset, root first, in creation order.
func (s *Store) History(asset string) ([]Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	indices, ok := s.byAsset[asset]
	if !ok {
		return nil, services.Wrap(services.ErrAssetNotFound, "versions", "history", asset, nil)
	}
	out := make([]Version, len(indices))
	for i, idx := range indices {
		out[i] = s.entries[idx]
	}
	return out, nil
}

// Leaf returns the most recently created version of asset.
func (s *Store) Leaf(asset string) (Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	indices, ok := s.byAsset[asset]
	if !ok || len(indices) == 0 {
		return Version{}, services.Wrap(services.ErrAssetNotFound, "versions", "leaf", asset, nil)
	}
	return s.entries[indices[len(indices)-1]], nil
}

// Lineage returns the chain from the asset root down to filename.
func (s *Store) Lineage(filename string) ([]Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byName[filename]
	if !ok {
		return nil, services.Wrap(services.ErrVersionNotFound, "versions", "lineage", filename, nil)
	}
	var chain []Version
	for ; idx >= 0; idx = s.parents[idx] {
		chain = append(chain, s.entries[idx])
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Assets returns every root version in creation order.
func (s *Store) Assets() []Version {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var roots []Version
	for idx, parent := range s.parents {
		if parent < 0 {
			roots = append(roots, s.entries[idx])
		}
	}
	return roots
}

// All returns every version in creation order.
func (s *Store) All() []Version {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Version, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of registered versions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// commitLocked persists v and then makes it visible. Callers hold s.mu.
func (s *Store) commitLocked(ctx context.Context, v Version, parentIdx int) (Version, error) {
	if s.readOnly {
		return Version{}, fmt.Errorf("%w: register %s", ErrReadOnly, v.Filename)
	}
	v.Seq = s.nextSeq
	if s.manifest != nil {
		if err := s.manifest.insert(ctx, v); err != nil {
			if isUniqueViolation(err) {
				return Version{}, services.Wrap(services.ErrDuplicateVersion, "versions", "persist", v.Filename, err)
			}
			return Version{}, fmt.Errorf("persist version %s: %w", v.Filename, err)
		}
	}
	s.appendLocked(v, parentIdx)
	return v, nil
}

func (s *Store) appendLocked(v Version, parentIdx int) {
	idx := len(s.entries)
	s.entries = append(s.entries, v)
	s.parents = append(s.parents, parentIdx)
	s.byName[v.Filename] = idx
	s.byAsset[v.Asset] = append(s.byAsset[v.Asset], idx)
	if v.Seq >= s.nextSeq {
		s.nextSeq = v.Seq + 1
	}
}

func (s *Store) loadManifest(ctx context.Context) error {
	rows, err := s.manifest.load(ctx)
	if err != nil {
		return err
	}
	var stale []string
	for _, v := range rows {
		parentIdx := -1
		if v.Parent != "" {
			idx, ok := s.byName[v.Parent]
			if !ok {
				stale = append(stale, v.Filename)
				continue
			}
			parentIdx = idx
		}
		if _, err := os.Stat(filepath.Join(s.dir, v.Filename)); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("stat %s: %w", v.Filename, err)
			}
			stale = append(stale, v.Filename)
			continue
		}
		s.appendLocked(v, parentIdx)
	}
	if len(stale) > 0 && s.readOnly {
		s.logger.Debug("hiding manifest entries without files", logging.Int("count", len(stale)))
		return nil
	}
	if len(stale) > 0 {
		s.logger.Info("dropping manifest entries without files",
			logging.Int("count", len(stale)),
			logging.String("first", stale[0]),
		)
		if err := s.manifest.remove(ctx, stale); err != nil {
			return fmt.Errorf("prune manifest: %w", err)
		}
	}
	return nil
}

// adoptUnknownFiles registers media files that exist on disk but not in the
// store. Shorter names are adopted first so parents precede their children.
func (s *Store) adoptUnknownFiles(ctx context.Context) error {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if s.readOnly && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read media directory: %w", err)
	}
	type candidate struct {
		name string
		info os.FileInfo
	}
	var candidates []candidate
	for _, entry := range dirEntries {
		name := entry.Name()
		if !entry.Type().IsRegular() || ValidateFilename(name) != nil {
			continue
		}
		if _, known := s.byName[name]; known {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{name: name, info: info})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i].name) != len(candidates[j].name) {
			return len(candidates[i].name) < len(candidates[j].name)
		}
		return candidates[i].name < candidates[j].name
	})

	suffixes := make([]string, 0, len(s.suffixes))
	for suffix := range s.suffixes {
		suffixes = append(suffixes, suffix)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range candidates {
		v := Version{
			ID:        uuid.NewString(),
			Asset:     c.name,
			Filename:  c.name,
			SizeBytes: c.info.Size(),
			CreatedAt: c.info.ModTime().UTC(),
		}
		parentIdx := -1
		if parent, suffix, ok := ParseDerived(c.name, suffixes); ok {
			if idx, known := s.byName[parent]; known {
				parentIdx = idx
				v.Parent = parent
				v.Asset = s.entries[idx].Asset
				v.Operation = s.suffixes[suffix]
			}
		}
		if parentIdx < 0 {
			if _, taken := s.byAsset[v.Asset]; taken {
				continue
			}
		}
		if s.readOnly {
			v.Seq = s.nextSeq
			s.appendLocked(v, parentIdx)
		} else if _, err := s.commitLocked(ctx, v, parentIdx); err != nil {
			return fmt.Errorf("adopt %s: %w", c.name, err)
		}
		s.logger.Debug("adopted media file",
			logging.String("filename", v.Filename),
			logging.String("parent", v.Parent),
		)
	}
	return nil
}
