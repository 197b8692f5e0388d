package server

import (
	"errors"
	"fmt"
	"net/http"

	"audioconv/internal/models"
	"audioconv/internal/scratch"
	"audioconv/internal/transcode"
)

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument     = 1000
	ErrCodeUnsupportedFormat   = 1001
	ErrCodeMissingFile         = 1002
	ErrCodeEmptyFile           = 1003
	ErrCodeInvalidDownloadFlag = 1004
	ErrCodeRequestTooLarge     = 1005
	ErrCodeMissingRequired     = 1006

	// Domain state (2xxx)
	ErrCodeArtifactNotFound = 2001

	// Access & limits (3xxx)
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal          = 4001
	ErrCodeStorageFailure    = 4002
	ErrCodeEngineFailure     = 4003
	ErrCodeEngineTimeout     = 4004
	ErrCodeEngineUnavailable = 4005
	ErrCodeCanceled          = 4006
)

// errorClass is one row of the HTTP error taxonomy. public, when set,
// replaces the error text in the response body because the raw error may
// carry filesystem paths or engine stderr.
type errorClass struct {
	status  int
	code    string
	errCode int
	public  string
}

var (
	classInvalidArgument     = errorClass{http.StatusBadRequest, "invalid_argument", ErrCodeInvalidArgument, ""}
	classUnsupportedFormat   = errorClass{http.StatusBadRequest, "unsupported_format", ErrCodeUnsupportedFormat, ""}
	classMissingFile         = errorClass{http.StatusBadRequest, "missing_file", ErrCodeMissingFile, ""}
	classEmptyFile           = errorClass{http.StatusBadRequest, "empty_file", ErrCodeEmptyFile, ""}
	classInvalidDownloadFlag = errorClass{http.StatusBadRequest, "invalid_download_flag", ErrCodeInvalidDownloadFlag, ""}
	classRequestTooLarge     = errorClass{http.StatusBadRequest, "request_too_large", ErrCodeRequestTooLarge, ""}
	classMissingRequired     = errorClass{http.StatusBadRequest, "missing_required", ErrCodeMissingRequired, ""}
	classNotFound            = errorClass{http.StatusNotFound, "not_found", ErrCodeArtifactNotFound, ""}
	classForbidden           = errorClass{http.StatusForbidden, "forbidden", ErrCodeForbidden, ""}
	classResourceExhausted   = errorClass{http.StatusTooManyRequests, "resource_exhausted", ErrCodeResourceExhausted, ""}
	classInternal            = errorClass{http.StatusInternalServerError, "internal", ErrCodeInternal, "internal error"}
	classStorageFailure      = errorClass{http.StatusInternalServerError, "storage_failure", ErrCodeStorageFailure, "internal error"}
	classEngineFailure       = errorClass{http.StatusInternalServerError, "engine_failure", ErrCodeEngineFailure, "audio conversion failed"}
	classEngineTimeout       = errorClass{http.StatusInternalServerError, "engine_timeout", ErrCodeEngineTimeout, "audio conversion timed out"}
	classEngineUnavailable   = errorClass{http.StatusInternalServerError, "engine_unavailable", ErrCodeEngineUnavailable, "audio conversion failed"}
	classCanceled            = errorClass{statusClientClosedRequest, "canceled", ErrCodeCanceled, ""}
)

// classified is an error tagged with its taxonomy row.
type classified struct {
	class errorClass
	err   error
}

func (e classified) Error() string { return e.err.Error() }

func (e classified) Unwrap() error { return e.err }

// wrap tags err with c. An error that is already classified keeps its
// original class.
func (c errorClass) wrap(err error) error {
	if err == nil {
		err = errors.New(http.StatusText(c.status))
	}
	var existing classified
	if errors.As(err, &existing) {
		return err
	}
	return classified{class: c, err: err}
}

func (c errorClass) errorf(format string, args ...any) error {
	return c.wrap(fmt.Errorf(format, args...))
}

// classOf returns the class err was tagged with, or internal.
func classOf(err error) errorClass {
	var c classified
	if errors.As(err, &c) {
		return c.class
	}
	return classInternal
}

// conversionError maps a failed result onto the HTTP error taxonomy.
func conversionError(result models.ConversionResult) error {
	err := result.Err
	if err == nil {
		err = errors.New("conversion failed")
	}
	switch result.ErrorKind {
	case models.ErrorKindValidation:
		switch {
		case errors.Is(err, scratch.ErrTooLarge):
			return classRequestTooLarge.errorf("request body too large")
		case errors.Is(err, scratch.ErrEmpty):
			return classEmptyFile.errorf("file is empty")
		default:
			return classUnsupportedFormat.wrap(err)
		}
	case models.ErrorKindTimeout:
		return classEngineTimeout.wrap(err)
	case models.ErrorKindEngine:
		if errors.Is(err, transcode.ErrEngineNotFound) {
			return classEngineUnavailable.wrap(err)
		}
		return classEngineFailure.wrap(err)
	case models.ErrorKindBusy:
		return classResourceExhausted.wrap(err)
	case models.ErrorKindCanceled:
		return classCanceled.wrap(err)
	case models.ErrorKindStorage:
		return classStorageFailure.wrap(err)
	default:
		return classInternal.wrap(err)
	}
}
