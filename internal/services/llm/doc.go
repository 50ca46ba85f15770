// Package llm is a small client for OpenAI-compatible chat completion APIs
// (OpenRouter by default) used by the advisory edit analysis.
//
// CompleteJSON requests JSON-mode output and returns the raw content.
// DecodeJSON parses it, tolerating code fences and surrounding prose.
// HealthCheck verifies the key and model.
//
// HTTP 408, 429, 5xx responses, network timeouts and empty completions are
// retried with capped exponential backoff, honouring Retry-After. Context
// cancellation stops retries immediately.
package llm
