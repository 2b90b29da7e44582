// Package converters wraps the external conversion engines. Each adapter
// invokes exactly one tool and reports failures as *models.ConversionError.
package converters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/akila/media-converter/models"
)

// Scratch hands out directories private to one request. They are removed
// together with the request's other artifacts.
type Scratch interface {
	ScratchDir(name string) (string, error)
}

// FileConverter turns the file at in into the file at out.
type FileConverter interface {
	Kind() models.EngineKind
	Convert(ctx context.Context, in, out string, scratch Scratch) error
}

// TextExtractor returns text recognized in the file at in. from is the
// source format; the file name is not consulted.
type TextExtractor interface {
	Kind() models.EngineKind
	Extract(ctx context.Context, in, from string) (string, error)
}

// waitDelay bounds how long Wait keeps pipes open after the process was killed.
const waitDelay = 5 * time.Second

// runTool runs bin with args, capturing stdout and stderr separately. A zero
// timeout means no deadline beyond ctx.
func runTool(ctx context.Context, log zerolog.Logger, engine, bin string, timeout time.Duration, args ...string) error {
	path, err := exec.LookPath(bin)
	if err != nil {
		return models.EngineError(engine, models.ErrEngineNotFound,
			fmt.Sprintf("%s executable %q not found; make sure it is installed and on PATH", engine, bin), err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	log.Info().Str("engine", engine).Str("bin", path).Strs("args", args).Msg("executing engine")
	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		log.Debug().Str("engine", engine).Dur("elapsed", elapsed).Str("stderr", stderr.String()).Msg("engine finished")
		return nil
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		log.Error().Str("engine", engine).Dur("timeout", timeout).Msg("engine timed out")
		return models.EngineError(engine, models.ErrEngineTimeout,
			fmt.Sprintf("%s did not finish within %s", engine, timeout), ctx.Err())
	case errors.Is(ctx.Err(), context.Canceled):
		log.Warn().Str("engine", engine).Msg("engine canceled")
		return models.EngineError(engine, models.ErrEngineExecution, "conversion canceled", ctx.Err())
	case errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission):
		return models.EngineError(engine, models.ErrEngineNotFound,
			fmt.Sprintf("%s executable %q could not be started: %v", engine, path, err), err)
	}

	msg := diagnostic(stderr.String(), stdout.String())
	if msg == "" {
		msg = fmt.Sprintf("%s failed: %v", engine, err)
	}
	log.Error().Err(err).Str("engine", engine).Dur("elapsed", elapsed).Str("stderr", stderr.String()).Msg("engine failed")
	return models.EngineError(engine, models.ErrEngineExecution, msg, err)
}

// diagnostic prefers the tool's stderr, falling back to stdout.
func diagnostic(stderr, stdout string) string {
	if strings.TrimSpace(stderr) != "" {
		return stderr
	}
	if strings.TrimSpace(stdout) != "" {
		return stdout
	}
	return ""
}
