// Package main hosts the tailor CLI entrypoint and command graph.
//
// `tailor serve` runs the daemon. The remaining commands open the workspace
// directly: read-only commands take a shared lock, while import and edit need
// the exclusive lock and therefore only work while no daemon is running.
package main
