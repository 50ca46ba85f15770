// Package ingest accepts uploaded originals. It checks the extension against
// an allow-list, sniffs the container signature, writes through a hidden
// scratch file and registers the result as a new root version.
package ingest
