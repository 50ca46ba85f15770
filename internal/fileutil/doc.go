// Package fileutil writes media files with post-write integrity checks.
package fileutil
