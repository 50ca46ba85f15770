// Package mirror uploads derived versions to an S3-compatible bucket. Uploads
// are best effort: callers log and count failures but never fail an edit
// because of them.
package mirror
