// Package logs reads the tail of tailor log files and optionally follows
// them as they grow.
package logs
