package versions

import (
	"fmt"
	"path/filepath"
	"strings"

	"tailor/internal/services"
)

// PartialMarker appears in the names of in-flight engine outputs. Files
// carrying it are never adopted into the store.
const PartialMarker = ".partial-"

// Stem returns filename without its extension.
func Stem(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// DerivedFilename names the output of applying an operation with suffix to
// parent: "<stem>_<suffix><ext>".
func DerivedFilename(parent, suffix string) string {
	ext := filepath.Ext(parent)
	return strings.TrimSuffix(parent, ext) + "_" + suffix + ext
}

// ParseDerived splits filename into the parent filename and suffix when its
// stem ends with "_<suffix>" for one of suffixes. The longest suffix wins.
func ParseDerived(filename string, suffixes []string) (parent, suffix string, ok bool) {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for _, candidate := range suffixes {
		tail := "_" + candidate
		if candidate == "" || !strings.HasSuffix(stem, tail) || len(stem) == len(tail) {
			continue
		}
		if len(candidate) > len(suffix) {
			parent = strings.TrimSuffix(stem, tail) + ext
			suffix = candidate
			ok = true
		}
	}
	return parent, suffix, ok
}

// ValidateFilename rejects names that could escape the media directory or
// collide with engine scratch files.
func ValidateFilename(filename string) error {
	switch {
	case strings.TrimSpace(filename) == "":
		return fmt.Errorf("%w: filename is required", services.ErrValidation)
	case filename != filepath.Base(filename) || strings.ContainsAny(filename, `/\`):
		return fmt.Errorf("%w: filename %q must not contain path separators", services.ErrValidation, filename)
	case strings.HasPrefix(filename, "."):
		return fmt.Errorf("%w: filename %q must not be hidden", services.ErrValidation, filename)
	case strings.Contains(filename, PartialMarker):
		return fmt.Errorf("%w: filename %q is reserved", services.ErrValidation, filename)
	}
	return nil
}
