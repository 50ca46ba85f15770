// Package workspace opens everything tailor needs for one state directory
// under a gofrs/flock lock: the version store, transform registry, intent
// resolver, engine, analysis backend, optional mirror and the orchestrator.
//
// Commands that register versions open in ReadWrite mode, which excludes any
// other process. Listing commands share a ReadOnly lock.
package workspace
