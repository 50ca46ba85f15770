package api

import "tailor/internal/analysis"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Version describes a stored version in a transport-friendly format.
type Version struct {
	ID        string `json:"id"`
	Asset     string `json:"asset"`
	Filename  string `json:"filename"`
	Parent    string `json:"parent,omitempty"`
	Operation string `json:"operation,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at,omitempty"`
	URL       string `json:"url"`
}

// HealthResponse answers GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// UploadResponse answers POST /api/upload.
type UploadResponse struct {
	Status   string  `json:"status"`
	Filename string  `json:"filename"`
	SizeMB   float64 `json:"size_mb"`
	Path     string  `json:"path"`
}

// EditResponse answers POST /api/edit.
type EditResponse struct {
	Status      string           `json:"status"`
	Filename    string           `json:"filename"`
	Query       string           `json:"query"`
	Operation   string           `json:"operation"`
	Parent      string           `json:"parent"`
	DownloadURL string           `json:"download_url"`
	Mirror      string           `json:"mirror,omitempty"`
	Analysis    *analysis.Result `json:"analysis,omitempty"`
}

// FilesResponse answers GET /api/files.
type FilesResponse struct {
	Uploads []Version `json:"uploads"`
	Edited  []Version `json:"edited"`
}

// HistoryResponse answers GET /api/assets/{name}/history.
type HistoryResponse struct {
	Asset    string    `json:"asset"`
	Versions []Version `json:"versions"`
}

// Operation describes a registered transform and the phrases that select it.
type Operation struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Suffix      string   `json:"suffix"`
	Triggers    []string `json:"triggers"`
}

// OperationsResponse answers GET /api/operations.
type OperationsResponse struct {
	Operations []Operation `json:"operations"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error      string `json:"error"`
	Kind       string `json:"kind"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// DependencyStatus captures availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}
