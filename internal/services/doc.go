// Package services defines shared utilities consumed by the edit pipeline and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp asset names, operation ids, and correlation
//     identifiers for logging.
//   - Sentinel error markers plus the Wrap helper, and Kind, which maps any
//     pipeline failure to the stable kind string shown to API and CLI callers.
//
// Subpackages hold the clients for external analysis backends (llm, gemini).
package services
