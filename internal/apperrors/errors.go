// Package apperrors holds the error taxonomy of the ranking pipeline.
//
// It re-exports github.com/cockroachdb/errors so call sites wrap with stack
// traces, and defines one sentinel per error kind. Errors are classified with
// errors.Is against the sentinels, or with Kind for transport mapping:
//
//	if err := store.Create(ctx, app); err != nil {
//	    return errors.Wrap(err, "create application")
//	}
//	if errors.Is(err, apperrors.ErrDuplicateApplication) { ... }
package apperrors

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	New       = crdb.New
	Newf      = crdb.Newf
	Wrap      = crdb.Wrap
	Wrapf     = crdb.Wrapf
	WithStack = crdb.WithStack
	Mark      = crdb.Mark
)

var (
	WithHint      = crdb.WithHint
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
)

var (
	Is    = crdb.Is
	IsAny = crdb.IsAny
	As    = crdb.As
)

var (
	// ErrValidation marks malformed input rejected before any state change.
	ErrValidation = New("validation failed")

	// ErrNotFound marks a missing job or application.
	ErrNotFound = New("not found")

	// ErrAuthorization marks an actor acting outside its permissions.
	ErrAuthorization = New("not authorized")

	// ErrDuplicateApplication marks a second application by the same applicant to the same job.
	ErrDuplicateApplication = New("already applied to this job")

	// ErrJobNotAccepting marks a submission to a job that is not open.
	ErrJobNotAccepting = New("job is not accepting applications")

	// ErrUnsupportedMediaType marks a CV file outside the accepted types.
	ErrUnsupportedMediaType = New("unsupported media type")

	// ErrScoringUnavailable is internal: the scorer failed and the neutral result was used.
	ErrScoringUnavailable = New("scoring unavailable")

	// ErrCVGenerationFailed marks a CV draft the generator could not produce.
	ErrCVGenerationFailed = New("cv generation failed")

	// ErrExtractionDegraded is internal: the CV file could not be read and its text is empty.
	ErrExtractionDegraded = New("cv extraction degraded")
)

// FieldError carries the offending field of a validation failure.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// Validation returns an ErrValidation-marked error naming the field and reason.
func Validation(field, reason string) error {
	return Mark(WithStack(&FieldError{Field: field, Reason: reason}), ErrValidation)
}

// NotFound returns an ErrNotFound-marked error for the given entity.
func NotFound(entity string) error {
	return Mark(Newf("%s not found", entity), ErrNotFound)
}

// Forbidden returns an ErrAuthorization-marked error with the reason.
func Forbidden(reason string) error {
	return Mark(New(reason), ErrAuthorization)
}

// Field extracts the field name of a validation error, if any.
func Field(err error) (string, bool) {
	var fe *FieldError
	if As(err, &fe) {
		return fe.Field, true
	}
	return "", false
}

// ErrKind names an error class for transports.
type ErrKind string

const (
	KindNone               ErrKind = ""
	KindValidation         ErrKind = "validation"
	KindNotFound           ErrKind = "not_found"
	KindAuthorization      ErrKind = "authorization"
	KindDuplicate          ErrKind = "duplicate_application"
	KindJobNotAccepting    ErrKind = "job_not_accepting_applications"
	KindUnsupportedMedia   ErrKind = "unsupported_media_type"
	KindScoringUnavailable ErrKind = "scoring_unavailable"
	KindExtraction         ErrKind = "extraction_degraded"
	KindCVGeneration       ErrKind = "cv_generation_failed"
	KindInternal           ErrKind = "internal"
)

var kinds = []struct {
	sentinel error
	kind     ErrKind
}{
	{ErrValidation, KindValidation},
	{ErrNotFound, KindNotFound},
	{ErrAuthorization, KindAuthorization},
	{ErrDuplicateApplication, KindDuplicate},
	{ErrJobNotAccepting, KindJobNotAccepting},
	{ErrUnsupportedMediaType, KindUnsupportedMedia},
	{ErrScoringUnavailable, KindScoringUnavailable},
	{ErrExtractionDegraded, KindExtraction},
	{ErrCVGenerationFailed, KindCVGeneration},
}

// Kind classifies err against the sentinels. Unknown errors are KindInternal.
func Kind(err error) ErrKind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindInternal
}
