package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/akila/media-converter/models"
	"github.com/akila/media-converter/workspace"
)

// LocalResult is the outcome of ConvertFile. Path is set when the output was
// copied to disk; text results stay in Result.Text.
type LocalResult struct {
	Result models.JobResult
	Path   string
}

// ErrDestinationExists is returned when ConvertFile would overwrite a file.
var ErrDestinationExists = errors.New("destination already exists")

// ConvertFile converts a file on local disk the same way an upload would be
// converted, then copies a file output into outDir as <name>.<to>. When that
// is the source itself, <name>_converted.<to> is used. Existing files are
// never overwritten.
func (d *Dispatcher) ConvertFile(ctx context.Context, ws *workspace.Manager, src, to, outDir string) (LocalResult, error) {
	from := models.NormalizeFormat(filepath.Ext(src))
	to = models.NormalizeFormat(to)
	if err := (models.ConversionRequest{From: from, To: to}).Validate(); err != nil {
		return LocalResult{Result: models.FailedResult(err)}, nil
	}

	dest, err := destinationFor(src, to, outDir)
	if err != nil {
		return LocalResult{}, err
	}

	in, err := os.Open(src)
	if err != nil {
		return LocalResult{}, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	id := ws.NewRequestID()
	scope, err := ws.Scope(id)
	if err != nil {
		return LocalResult{}, err
	}
	inputPath, err := scope.SaveInput(from, in)
	if err != nil {
		scope.Release()
		return LocalResult{}, err
	}

	res := d.HandleConversion(ctx, scope, models.Job{
		ID:         id,
		InputPath:  inputPath,
		FromFormat: from,
		ToFormat:   to,
	})
	if !res.Success || res.Output != models.OutputFile {
		return LocalResult{Result: res}, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return LocalResult{Result: res}, err
	}

	err = ws.Deliver(filepath.Base(res.Path), func(f *os.File, _ os.FileInfo) error {
		out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				return fmt.Errorf("%w: %s", ErrDestinationExists, dest)
			}
			return err
		}
		if _, err := io.Copy(out, f); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
	if err != nil {
		return LocalResult{Result: res}, fmt.Errorf("copy output to %s: %w", dest, err)
	}
	return LocalResult{Result: res, Path: dest}, nil
}

// destinationFor picks the output path for src and fails early when it is
// already taken, so no conversion runs for nothing.
func destinationFor(src, to, outDir string) (string, error) {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", src, err)
	}
	if outDir == "" {
		outDir = filepath.Dir(absSrc)
	}
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", outDir, err)
	}

	stem := strings.TrimSuffix(filepath.Base(absSrc), filepath.Ext(absSrc))
	dest := filepath.Join(absOut, stem+"."+to)
	if dest == absSrc || sameFile(dest, absSrc) {
		dest = filepath.Join(absOut, stem+"_converted."+to)
	}
	if _, err := os.Lstat(dest); err == nil {
		return "", fmt.Errorf("%w: %s", ErrDestinationExists, dest)
	}
	return dest, nil
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}
