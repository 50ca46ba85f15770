// Package versions tracks every root and derived media file together with its
// lineage.
//
// All versions live in one arena slice with parent-index back-references, so
// history and lineage walks never chase pointers. Registration is the single
// serialization point for filename uniqueness: the first writer of a filename
// wins and later writers receive that version alongside ErrDuplicateVersion.
//
// The optional SQLite manifest (modernc.org/sqlite) persists lineage across
// restarts. On open it is reconciled with the media directory so it never
// disagrees with the files actually on disk.
package versions
