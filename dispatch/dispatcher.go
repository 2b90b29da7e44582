// Package dispatch routes a conversion job to its engine and normalizes the
// outcome into a models.JobResult.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/akila/media-converter/models"
	"github.com/akila/media-converter/routes"
	"github.com/akila/media-converter/workspace"
)

// MsgOutputMissing is reported when an engine claims success but left no usable file.
const MsgOutputMissing = "conversion reported success but output artifact is missing or empty"

type Dispatcher struct {
	routes  *routes.Table
	engines *EngineManager
	log     zerolog.Logger
}

func NewDispatcher(table *routes.Table, engines *EngineManager, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		routes:  table,
		engines: engines,
		log:     log.With().Str("component", "dispatcher").Logger(),
	}
}

// HandleConversion runs job inside scope and always releases the scope
// before returning. On a file result the output is the only artifact left
// on disk; it belongs to whoever delivers it.
func (d *Dispatcher) HandleConversion(ctx context.Context, scope *workspace.Scope, job models.Job) (result models.JobResult) {
	log := d.log.With().
		Str("request_id", scope.ID()).
		Str("from", job.FromFormat).
		Str("to", job.ToFormat).
		Logger()

	defer scope.Release()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("conversion panicked")
			result = models.FailedResult(models.NewError(models.ErrUnexpectedInternal,
				fmt.Sprintf("unexpected error during conversion: %v", r), nil))
		}
	}()

	start := time.Now()
	result = d.dispatch(ctx, scope, job, log)
	if result.Success {
		log.Info().Dur("elapsed", time.Since(start)).Str("path", result.Path).Msg("conversion succeeded")
	} else {
		log.Warn().Dur("elapsed", time.Since(start)).
			Str("error_kind", string(result.Error.Kind)).
			Str("error", result.Error.Error()).
			Msg("conversion failed")
	}
	return result
}

func (d *Dispatcher) dispatch(ctx context.Context, scope *workspace.Scope, job models.Job, log zerolog.Logger) models.JobResult {
	req := models.ConversionRequest{From: job.FromFormat, To: job.ToFormat, InputPath: job.InputPath}
	if err := req.Validate(); err != nil {
		return models.FailedResult(err)
	}

	kind, err := d.routes.Resolve(req.From, req.To)
	if err != nil {
		return models.FailedResult(err)
	}
	log.Info().Str("engine", kind.String()).Msg("route resolved")

	if kind == models.EngineOCR {
		ocr := d.engines.OCR
		if ocr == nil || ocr.Kind() != kind {
			return models.FailedResult(models.NewError(models.ErrUnexpectedInternal, "no OCR engine configured", nil))
		}
		text, err := ocr.Extract(ctx, req.InputPath, req.From)
		if err != nil {
			return models.FailedResult(err)
		}
		return models.TextResult(text)
	}

	conv := d.engines.fileConverter(kind)
	if conv == nil || conv.Kind() != kind {
		return models.FailedResult(models.NewError(models.ErrUnexpectedInternal,
			fmt.Sprintf("no engine configured for %s", kind), nil))
	}

	out, err := scope.NewPath(workspace.RoleOutput, req.To)
	if err != nil {
		return models.FailedResult(err)
	}
	if err := conv.Convert(ctx, req.InputPath, out, scope); err != nil {
		return models.FailedResult(err)
	}

	info, err := os.Stat(out)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return models.FailedResult(models.EngineError(kind.String(), models.ErrOutputMissingOrEmpty, MsgOutputMissing, err))
	}

	if err := scope.Keep(out); err != nil {
		return models.FailedResult(err)
	}
	return models.FileResult(out)
}
