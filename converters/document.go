package converters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/akila/media-converter/models"
)

// sofficeCandidates are probed in order when no binary is configured.
var sofficeCandidates = []string{
	"/opt/homebrew/bin/soffice",
	"/Applications/LibreOffice.app/Contents/MacOS/soffice",
	"/usr/bin/libreoffice",
	"/usr/bin/soffice",
}

// LibreOffice converts PDF documents to DOCX, all pages included.
type LibreOffice struct {
	bin     string
	timeout time.Duration
	log     zerolog.Logger
}

// NewLibreOffice uses bin when set, otherwise the first installed candidate,
// otherwise "soffice" from PATH.
func NewLibreOffice(bin string, timeout time.Duration, log zerolog.Logger) *LibreOffice {
	if bin == "" {
		bin = "soffice"
		for _, c := range sofficeCandidates {
			if _, err := os.Stat(c); err == nil {
				bin = c
				break
			}
		}
	}
	return &LibreOffice{bin: bin, timeout: timeout, log: log}
}

func (c *LibreOffice) Kind() models.EngineKind { return models.EngineDocument }

// Convert runs soffice headless with the Writer PDF import filter. soffice
// names its output after the input, so it writes into a scratch directory
// of the request and the result is moved into place.
func (c *LibreOffice) Convert(ctx context.Context, in, out string, scratch Scratch) error {
	absIn, err := filepath.Abs(in)
	if err != nil {
		return models.EngineError("libreoffice", models.ErrUnexpectedInternal, fmt.Sprintf("resolve input path: %v", err), err)
	}
	absOut, err := filepath.Abs(out)
	if err != nil {
		return models.EngineError("libreoffice", models.ErrUnexpectedInternal, fmt.Sprintf("resolve output path: %v", err), err)
	}

	ext := strings.TrimPrefix(filepath.Ext(absOut), ".")
	workDir, err := scratch.ScratchDir("soffice")
	if err != nil {
		return models.EngineError("libreoffice", models.ErrUnexpectedInternal, fmt.Sprintf("create work directory: %v", err), err)
	}
	if abs, err := filepath.Abs(workDir); err == nil {
		workDir = abs
	}
	outDir := filepath.Join(workDir, "out")
	// A private profile avoids the lock soffice takes on the shared one.
	profileDir := filepath.Join(workDir, "profile")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return models.EngineError("libreoffice", models.ErrUnexpectedInternal, fmt.Sprintf("create work directory: %v", err), err)
	}

	args := []string{
		"-env:UserInstallation=file://" + filepath.ToSlash(profileDir),
		"--headless",
		"--infilter=writer_pdf_import",
		"--convert-to", ext,
		"--outdir", outDir,
		absIn,
	}
	if err := runTool(ctx, c.log, "libreoffice", c.bin, c.timeout, args...); err != nil {
		return err
	}

	produced := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(absIn), filepath.Ext(absIn))+"."+ext)
	if _, err := os.Stat(produced); err != nil {
		matches, _ := filepath.Glob(filepath.Join(outDir, "*."+ext))
		if len(matches) == 0 {
			return models.EngineError("libreoffice", models.ErrEngineExecution,
				fmt.Sprintf("PDF to %s conversion finished but no output file was produced", strings.ToUpper(ext)), err)
		}
		produced = matches[0]
	}

	if err := os.Rename(produced, absOut); err != nil {
		return models.EngineError("libreoffice", models.ErrUnexpectedInternal, fmt.Sprintf("move output into place: %v", err), err)
	}
	return nil
}
