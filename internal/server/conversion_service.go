package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"audioconv/internal/artifact"
	"audioconv/internal/models"
	"audioconv/internal/scratch"
	"audioconv/internal/transcode"
)

// Transcoder is the engine contract used by ConversionService.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string, format models.Format) (transcode.Result, error)
}

var (
	errEngineNoOutput = errors.New("engine produced no output")
	errEngineExit     = errors.New("engine exited with failure")
	errEngineTimeout  = errors.New("engine timed out")
)

// ConversionService runs one upload through scratch, engine and artifact store.
type ConversionService struct {
	scratch        *scratch.Dir
	artifacts      artifact.Store
	engine         Transcoder
	maxUploadBytes int64
	logger         *slog.Logger
	now            func() time.Time
}

// NewConversionService wires the conversion pipeline. maxUploadBytes <= 0
// disables the size cap on scratch writes.
func NewConversionService(scratchDir *scratch.Dir, artifacts artifact.Store, engine Transcoder, maxUploadBytes int64, logger *slog.Logger) *ConversionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversionService{
		scratch:        scratchDir,
		artifacts:      artifacts,
		engine:         engine,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
		now:            time.Now,
	}
}

// Convert executes the pipeline for req. The scratch input is removed on
// every path and a failed run never leaves an artifact under its final name.
func (s *ConversionService) Convert(ctx context.Context, req models.ConversionRequest) models.ConversionResult {
	logger := requestLogger(ctx, s.logger).With("source_name", req.SourceName, "target_format", string(req.TargetFormat))
	state := models.StateReceived

	format, err := models.ParseFormat(string(req.TargetFormat))
	if err != nil {
		state = models.StateFailed
		return models.Failed(models.ErrorKindValidation, err)
	}
	if req.Source == nil {
		state = models.StateFailed
		return models.Failed(models.ErrorKindValidation, scratch.ErrEmpty)
	}
	state = models.StateValidated

	input, err := s.scratch.Create(ctx, req.SourceName, req.Source, s.maxUploadBytes)
	if err != nil {
		state = models.StateFailed
		return models.Failed(classifyScratchError(err), err)
	}
	defer func() {
		if err := input.Release(); err != nil {
			logger.Error("remove scratch input", "path", input.Path, "error", err)
		}
		logger.Debug("conversion state", "state", models.StateCleanedUp, "outcome", state)
	}()
	state = models.StateScratchWritten
	logger.Debug("scratch input written", "path", input.Path, "size", humanize.IBytes(uint64(input.Size)))

	reservation, err := s.artifacts.ReserveName(ctx, req.SourceName, format.Extension())
	if err != nil {
		state = models.StateFailed
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.Failed(models.ErrorKindCanceled, ctxErr)
		}
		return models.Failed(models.ErrorKindStorage, fmt.Errorf("reserve artifact name: %w", err))
	}
	defer reservation.Abort()

	state = models.StateTranscoding
	res, err := s.engine.Transcode(ctx, input.Path, reservation.PartialPath, format)
	if err != nil {
		state = models.StateFailed
		return models.Failed(classifyEngineError(ctx, err), err)
	}

	fields := []any{
		"outcome", res.Outcome.String(),
		"exit_code", res.ExitCode,
		"duration_ms", res.Duration.Milliseconds(),
	}
	switch res.Outcome {
	case transcode.ExitOK:
	case transcode.TimedOut:
		state = models.StateFailed
		logger.Warn("engine timed out", append(fields, "stderr", res.StderrTail)...)
		result := models.Failed(models.ErrorKindTimeout, errEngineTimeout)
		result.EngineDiagnostics = res.StderrTail
		return result
	default:
		state = models.StateFailed
		logger.Warn("engine failed", append(fields, "stderr", res.StderrTail)...)
		result := models.Failed(models.ErrorKindEngine, fmt.Errorf("%w: exit code %d", errEngineExit, res.ExitCode))
		result.EngineDiagnostics = res.StderrTail
		return result
	}

	info, err := os.Stat(reservation.PartialPath)
	if err != nil || info.Size() == 0 {
		state = models.StateFailed
		logger.Warn("engine produced no output", append(fields, "stderr", res.StderrTail)...)
		result := models.Failed(models.ErrorKindEngine, errEngineNoOutput)
		result.EngineDiagnostics = res.StderrTail
		return result
	}

	size, err := reservation.Commit()
	if err != nil {
		state = models.StateFailed
		return models.Failed(models.ErrorKindStorage, fmt.Errorf("publish artifact: %w", err))
	}
	state = models.StateSucceeded

	logger.Info("conversion succeeded", append(fields,
		"artifact", reservation.Name,
		"input_size", humanize.IBytes(uint64(input.Size)),
		"output_size", humanize.IBytes(uint64(size)),
	)...)

	return models.ConversionResult{
		Success: true,
		Artifact: &models.Artifact{
			Name:      reservation.Name,
			Path:      reservation.FinalPath,
			Format:    format,
			SizeBytes: size,
			CreatedAt: s.now().UTC(),
		},
		EngineDiagnostics: res.StderrTail,
	}
}

func classifyScratchError(err error) models.ErrorKind {
	switch {
	case errors.Is(err, scratch.ErrEmpty), errors.Is(err, scratch.ErrTooLarge):
		return models.ErrorKindValidation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return models.ErrorKindCanceled
	default:
		return models.ErrorKindStorage
	}
}

func classifyEngineError(ctx context.Context, err error) models.ErrorKind {
	switch {
	case errors.Is(err, transcode.ErrBusy):
		return models.ErrorKindBusy
	case ctx.Err() != nil:
		return models.ErrorKindCanceled
	default:
		return models.ErrorKindEngine
	}
}
