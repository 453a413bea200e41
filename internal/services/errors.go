package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPathNotFound       = errors.New("path not found")
	ErrUnclassifiedFormat = errors.New("unclassified format")
	ErrToolFailure        = errors.New("tool reported failure")
	ErrEnvironment        = errors.New("environment failure")
	ErrTimeout            = errors.New("stage timeout")
	ErrCancelled          = errors.New("cancelled")
	ErrValidation         = errors.New("validation error")
	ErrConfiguration      = errors.New("configuration error")
)

// FailureKind is the report-facing classification of an error chain.
type FailureKind string

const (
	KindNone          FailureKind = ""
	KindPathNotFound  FailureKind = "path_not_found"
	KindUnclassified  FailureKind = "unclassified_format"
	KindToolFailure   FailureKind = "tool_failure"
	KindEnvironment   FailureKind = "environment_failure"
	KindTimeout       FailureKind = "stage_timeout"
	KindCancelled     FailureKind = "cancelled"
	KindValidation    FailureKind = "validation"
	KindConfiguration FailureKind = "configuration"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrToolFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf classifies err. Cancellation wins over every other marker because a
// cancelled stage often also reports a non-zero exit.
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrEnvironment):
		return KindEnvironment
	case errors.Is(err, ErrPathNotFound):
		return KindPathNotFound
	case errors.Is(err, ErrUnclassifiedFormat):
		return KindUnclassified
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindToolFailure
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "stage failure"
	}
	return strings.Join(parts, ": ")
}
