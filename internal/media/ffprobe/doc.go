// Package ffprobe wraps ffprobe's JSON output for the metadata tailor shows in
// `tailor inspect` and feeds into edit analysis prompts.
package ffprobe
