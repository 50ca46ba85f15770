// Package pipeline sequences one edit command: an advisory analysis step that
// may fail freely, then keyword resolution and execution against the latest
// version of the asset.
package pipeline
