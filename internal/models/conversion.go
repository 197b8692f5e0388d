package models

import (
	"io"
	"time"
)

// ConversionState tracks one request through the conversion pipeline.
type ConversionState string

const (
	StateReceived       ConversionState = "received"
	StateValidated      ConversionState = "validated"
	StateScratchWritten ConversionState = "scratch_written"
	StateTranscoding    ConversionState = "transcoding"
	StateSucceeded      ConversionState = "succeeded"
	StateFailed         ConversionState = "failed"
	StateCleanedUp      ConversionState = "cleaned_up"
)

// ErrorKind classifies why a conversion did not produce an artifact.
type ErrorKind string

const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindStorage    ErrorKind = "storage"
	ErrorKindEngine     ErrorKind = "engine"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindCanceled   ErrorKind = "canceled"
	ErrorKindBusy       ErrorKind = "busy"
)

// IsEngine reports whether the kind belongs to the engine failure family.
// Timeouts are a subtype of engine errors.
func (k ErrorKind) IsEngine() bool {
	return k == ErrorKindEngine || k == ErrorKindTimeout
}

// ConversionRequest is one upload to be converted.
// SourceName is client supplied and only used as a display hint.
type ConversionRequest struct {
	Source       io.Reader
	SourceName   string
	TargetFormat Format
	Delivery     DeliveryMode
}

// Artifact is a finished conversion output owned by the artifact store.
type Artifact struct {
	Name      string    `json:"filename"`
	Path      string    `json:"-"`
	Format    Format    `json:"format"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversionResult is produced once per request and consumed to build the response.
type ConversionResult struct {
	Success           bool
	Artifact          *Artifact
	ErrorKind         ErrorKind
	EngineDiagnostics string
	Err               error
}

// Failed builds a failed result of the given kind.
func Failed(kind ErrorKind, err error) ConversionResult {
	return ConversionResult{ErrorKind: kind, Err: err}
}
