// Package daemon runs the long-lived tailor process: it checks local
// readiness, opens the workspace under the exclusive state lock and serves
// the HTTP API until it receives a termination signal.
//
// Routes:
//
//	GET  /api/health                 liveness and version
//	POST /api/upload                 multipart "file" field, stored as a new asset
//	POST /api/edit                   form or JSON {filename, query}, rate limited per client
//	GET  /api/files                  uploads and edited versions
//	GET  /api/assets/{name}/history  every version of one asset
//	GET  /api/operations             registered transforms and their trigger phrases
//	GET  /media/{filename}           registered versions only
//	GET  /metrics                    Prometheus exposition
//
// Errors are JSON {error, kind}; HTTPStatus maps kinds to status codes.
package daemon
