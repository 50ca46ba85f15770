package api

import (
	"net/url"

	"tailor/internal/deps"
	"tailor/internal/intent"
	"tailor/internal/pipeline"
	"tailor/internal/transform"
	"tailor/internal/versions"
)

// MediaPath is the URL prefix stored versions are served under.
const MediaPath = "/media/"

// MediaURL returns the download path for filename.
func MediaURL(filename string) string {
	return MediaPath + url.PathEscape(filename)
}

// FromVersion converts a stored version to its API representation.
func FromVersion(v versions.Version) Version {
	dto := Version{
		ID:        v.ID,
		Asset:     v.Asset,
		Filename:  v.Filename,
		Parent:    v.Parent,
		Operation: v.Operation,
		SizeBytes: v.SizeBytes,
		URL:       MediaURL(v.Filename),
	}
	if !v.CreatedAt.IsZero() {
		dto.CreatedAt = v.CreatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromVersions converts a slice, never returning nil.
func FromVersions(list []versions.Version) []Version {
	out := make([]Version, 0, len(list))
	for _, v := range list {
		out = append(out, FromVersion(v))
	}
	return out
}

// FromOutcome builds the edit response for a handled command.
func FromOutcome(query string, out pipeline.Outcome) EditResponse {
	resp := EditResponse{
		Status:      "success",
		Filename:    out.Version.Filename,
		Query:       query,
		Operation:   out.Operation,
		Parent:      out.Version.Parent,
		DownloadURL: MediaURL(out.Version.Filename),
		Mirror:      out.Mirror,
	}
	if out.Analysis.Succeeded {
		result := out.Analysis
		resp.Analysis = &result
	}
	return resp
}

// SplitFiles separates roots from derived versions, each in creation order.
func SplitFiles(all []versions.Version) FilesResponse {
	resp := FilesResponse{Uploads: []Version{}, Edited: []Version{}}
	for _, v := range all {
		if v.IsRoot() {
			resp.Uploads = append(resp.Uploads, FromVersion(v))
		} else {
			resp.Edited = append(resp.Edited, FromVersion(v))
		}
	}
	return resp
}

// FromRegistry lists every operation with its trigger phrases.
func FromRegistry(reg *transform.Registry, resolver *intent.Resolver) OperationsResponse {
	ops := reg.List()
	resp := OperationsResponse{Operations: make([]Operation, 0, len(ops))}
	for _, op := range ops {
		triggers := resolver.PhrasesFor(op.ID)
		if triggers == nil {
			triggers = []string{}
		}
		resp.Operations = append(resp.Operations, Operation{
			ID:          op.ID,
			Description: op.Description,
			Suffix:      op.Suffix,
			Triggers:    triggers,
		})
	}
	return resp
}

// FromDependencies converts binary checks for status payloads.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
		})
	}
	return out
}
