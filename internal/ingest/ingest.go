package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"tailor/internal/fileutil"
	"tailor/internal/logging"
	"tailor/internal/metrics"
	"tailor/internal/services"
	"tailor/internal/versions"
)

// AllowedExtensions are the container extensions accepted for upload.
var AllowedExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".webm", ".wmv", ".flv", ".m4v"}

// sniffBytes is how much of the stream is inspected for a container signature.
const sniffBytes = 8192

// Importer writes uploaded originals into the media directory and registers
// them as roots.
type Importer struct {
	store    *versions.Store
	maxBytes int64
	logger   *slog.Logger
	metrics  *metrics.Recorder
}

// Option customizes an Importer.
type Option func(*Importer)

// WithMaxBytes rejects uploads larger than n bytes. n <= 0 disables the limit.
func WithMaxBytes(n int64) Option {
	return func(i *Importer) { i.maxBytes = n }
}

// WithLogger sets the importer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Importer) { i.logger = logging.NewComponentLogger(logger, "ingest") }
}

// WithMetrics counts imports on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(i *Importer) { i.metrics = m }
}

// New constructs an importer over store.
func New(store *versions.Store, opts ...Option) *Importer {
	i := &Importer{store: store, logger: logging.NewComponentLogger(nil, "ingest")}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// CheckName validates an upload filename: a plain base name with an allowed
// extension.
func CheckName(name string) error {
	if err := versions.ValidateFilename(name); err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(AllowedExtensions, ext) {
		return fmt.Errorf("%w: file type %q not allowed (accepted: %s)",
			services.ErrValidation, ext, strings.Join(AllowedExtensions, " "))
	}
	return nil
}

// Import stores the content of r as a new root named name.
func (i *Importer) Import(ctx context.Context, name string, r io.Reader) (versions.Version, error) {
	name = filepath.Base(strings.TrimSpace(name))
	v, err := i.importStream(ctx, name, r)
	i.record(name, err)
	return v, err
}

// ImportFile copies the local file at path into the media directory as a new
// root named after its base name.
func (i *Importer) ImportFile(ctx context.Context, path string) (versions.Version, error) {
	name := filepath.Base(path)
	v, err := i.importFile(ctx, name, path)
	i.record(name, err)
	return v, err
}

func (i *Importer) importStream(ctx context.Context, name string, r io.Reader) (versions.Version, error) {
	if err := i.precheck(name); err != nil {
		return versions.Version{}, err
	}
	br := bufio.NewReaderSize(r, sniffBytes)
	head, err := br.Peek(sniffBytes)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return versions.Version{}, fmt.Errorf("read upload: %w", err)
	}
	if err := sniff(name, head); err != nil {
		return versions.Version{}, err
	}

	tmp := i.scratchPath(name)
	digest, err := fileutil.WriteVerified(tmp, br, i.maxBytes)
	if err != nil {
		return versions.Version{}, classifyWriteError(name, err)
	}
	return i.commit(ctx, name, tmp, digest)
}

func (i *Importer) importFile(ctx context.Context, name, path string) (versions.Version, error) {
	if err := i.precheck(name); err != nil {
		return versions.Version{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return versions.Version{}, fmt.Errorf("open %s: %w", path, err)
	}
	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, head)
	_ = f.Close()
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return versions.Version{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := sniff(name, head[:n]); err != nil {
		return versions.Version{}, err
	}

	tmp := i.scratchPath(name)
	digest, err := fileutil.CopyVerified(path, tmp, i.maxBytes)
	if err != nil {
		return versions.Version{}, classifyWriteError(name, err)
	}
	return i.commit(ctx, name, tmp, digest)
}

func (i *Importer) precheck(name string) error {
	if err := CheckName(name); err != nil {
		return err
	}
	if i.store.ReadOnly() {
		return fmt.Errorf("%w: cannot import %s", versions.ErrReadOnly, name)
	}
	if _, err := i.store.Get(name); err == nil {
		return services.Wrap(services.ErrDuplicateVersion, "ingest", "import", name+" is already stored", nil)
	}
	return nil
}

// commit publishes tmp under name without replacing an existing file and
// registers the root. The registration outlives caller cancellation so the
// file and manifest never disagree.
func (i *Importer) commit(ctx context.Context, name, tmp string, digest fileutil.Digest) (versions.Version, error) {
	final := filepath.Join(i.store.Dir(), name)
	if err := os.Link(tmp, final); err != nil {
		_ = os.Remove(tmp)
		if errors.Is(err, fs.ErrExist) {
			return versions.Version{}, services.Wrap(services.ErrDuplicateVersion, "ingest", "import", name+" already exists in the media directory", nil)
		}
		return versions.Version{}, fmt.Errorf("publish %s: %w", name, err)
	}
	_ = os.Remove(tmp)

	v, err := i.store.RegisterRoot(context.WithoutCancel(ctx), name, name, digest.Size)
	if err != nil {
		_ = os.Remove(final)
		return versions.Version{}, err
	}
	logging.WithContext(ctx, i.logger).Info("original imported",
		logging.String(logging.FieldAsset, name),
		logging.Int64("size_bytes", digest.Size),
		logging.String("sha256", digest.SHA256),
	)
	return v, nil
}

func (i *Importer) scratchPath(name string) string {
	ext := filepath.Ext(name)
	return filepath.Join(i.store.Dir(), "."+versions.Stem(name)+versions.PartialMarker+uuid.NewString()+ext)
}

func (i *Importer) record(name string, err error) {
	switch {
	case err == nil:
		i.metrics.IncImport(metrics.OutcomeSuccess)
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrDuplicateVersion):
		i.metrics.IncImport(metrics.OutcomeSkipped)
		i.logger.Info("import rejected", logging.String(logging.FieldAsset, name), logging.Error(err))
	default:
		i.metrics.IncImport(metrics.OutcomeFailure)
		logging.WarnWithContext(i.logger, "import failed", "import_failed",
			logging.String(logging.FieldAsset, name),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the media directory"),
			logging.String(logging.FieldImpact, "upload was not stored"),
		)
	}
}

// sniff rejects content whose signature is not a known video container.
func sniff(name string, head []byte) error {
	if len(head) == 0 {
		return fmt.Errorf("%w: %s is empty", services.ErrValidation, name)
	}
	if !filetype.IsVideo(head) {
		kind, _ := filetype.Match(head)
		detected := "unknown content"
		if kind != filetype.Unknown {
			detected = kind.MIME.Value
		}
		return fmt.Errorf("%w: %s is not a video container (detected %s)", services.ErrValidation, name, detected)
	}
	return nil
}

func classifyWriteError(name string, err error) error {
	if errors.Is(err, fileutil.ErrTooLarge) {
		return fmt.Errorf("%w: %s: %w", services.ErrValidation, name, err)
	}
	return fmt.Errorf("write %s: %w", name, err)
}
