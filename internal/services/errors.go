package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnrecognizedCommand = errors.New("unrecognized command")
	ErrAssetNotFound       = errors.New("asset not found")
	ErrVersionNotFound     = errors.New("version not found")
	ErrDuplicateVersion    = errors.New("duplicate version")
	ErrUnknownOperation    = errors.New("unknown operation")
	ErrEngineFailure       = errors.New("engine failure")
	ErrTimeout             = errors.New("timeout")
	ErrAnalysisUnavailable = errors.New("analysis unavailable")
	ErrValidation          = errors.New("validation error")
	ErrConfiguration       = errors.New("configuration error")
)

// Kind values are stable identifiers surfaced to API and CLI callers.
const (
	KindUnrecognizedCommand = "unrecognized_command"
	KindAssetNotFound       = "asset_not_found"
	KindVersionNotFound     = "version_not_found"
	KindDuplicateVersion    = "duplicate_version"
	KindUnknownOperation    = "unknown_operation"
	KindEngineFailure       = "engine_failure"
	KindTimeout             = "timeout"
	KindAnalysisUnavailable = "analysis_unavailable"
	KindValidation          = "validation"
	KindConfiguration       = "configuration"
	KindCanceled            = "canceled"
	KindInternal            = "internal"
)

var kindMarkers = []struct {
	marker error
	kind   string
}{
	{ErrUnrecognizedCommand, KindUnrecognizedCommand},
	{ErrAssetNotFound, KindAssetNotFound},
	{ErrVersionNotFound, KindVersionNotFound},
	{ErrDuplicateVersion, KindDuplicateVersion},
	{ErrUnknownOperation, KindUnknownOperation},
	{ErrTimeout, KindTimeout},
	{ErrEngineFailure, KindEngineFailure},
	{ErrAnalysisUnavailable, KindAnalysisUnavailable},
	{ErrValidation, KindValidation},
	{ErrConfiguration, KindConfiguration},
}

// Wrap builds an error message that includes component context while tagging
// it with the provided marker so callers can classify it with errors.Is. The
// marker should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		if err == nil {
			return errors.New(detail)
		}
		return fmt.Errorf("%s: %w", detail, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to its stable kind string. Timeouts are checked before
// engine failures so a killed process is never reported as a generic failure.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, km := range kindMarkers {
		if errors.Is(err, km.marker) {
			return km.kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindInternal
}

// Diagnoser is implemented by errors that carry a short, user-presentable
// diagnostic separate from their full message.
type Diagnoser interface {
	Diagnostic() string
}

// Diagnostic returns the short diagnostic carried by err, falling back to the
// error message.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	var d Diagnoser
	if errors.As(err, &d) {
		if text := strings.TrimSpace(d.Diagnostic()); text != "" {
			return text
		}
	}
	return err.Error()
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
