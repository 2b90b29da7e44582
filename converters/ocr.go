package converters

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/akila/media-converter/models"
)

// Recognizer runs character recognition with a fixed language set.
type Recognizer interface {
	RecognizeFile(ctx context.Context, path string) (string, error)
	RecognizeImage(ctx context.Context, img image.Image, dpi int) (string, error)
}

// Rasterizer renders each page of a PDF, in page order, and hands it to fn.
// Pages are numbered from 1.
type Rasterizer interface {
	Rasterize(ctx context.Context, path string, dpi float64, fn func(page int, img image.Image) error) error
}

var ocrImageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "tiff": true, "bmp": true, "webp": true,
}

// OCR extracts text from images and from PDFs rasterized page by page.
type OCR struct {
	recognizer Recognizer
	rasterizer Rasterizer
	dpi        int
	timeout    time.Duration
	log        zerolog.Logger
}

func NewOCR(recognizer Recognizer, rasterizer Rasterizer, dpi int, timeout time.Duration, log zerolog.Logger) *OCR {
	if dpi <= 0 {
		dpi = 300
	}
	return &OCR{recognizer: recognizer, rasterizer: rasterizer, dpi: dpi, timeout: timeout, log: log}
}

func (o *OCR) Kind() models.EngineKind { return models.EngineOCR }

// PageMarker separates the text of consecutive PDF pages.
func PageMarker(page int) string {
	return fmt.Sprintf("\n--- Page %d ---\n", page)
}

// Extract recognizes text in the file at in, treating it as format from. The
// timeout is checked between pages; a page already handed to the recognizer
// runs to completion.
func (o *OCR) Extract(ctx context.Context, in, from string) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	ext := models.NormalizeFormat(from)
	log := o.log.With().Str("engine", "ocr").Str("path", in).Str("from", ext).Logger()

	switch {
	case ocrImageExtensions[ext]:
		log.Info().Msg("recognizing image")
		text, err := o.recognizer.RecognizeFile(ctx, in)
		if err != nil {
			return "", o.wrap(ctx, "recognize image", err)
		}
		return text, nil

	case ext == "pdf":
		var b strings.Builder
		pages := 0
		err := o.rasterizer.Rasterize(ctx, in, float64(o.dpi), func(page int, img image.Image) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			text, err := o.recognizer.RecognizeImage(ctx, img, o.dpi)
			if err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			b.WriteString(PageMarker(page))
			b.WriteString(text)
			pages++
			return nil
		})
		if err != nil {
			return "", o.wrap(ctx, "recognize pdf", err)
		}
		if err := ctx.Err(); err != nil {
			return "", o.wrap(ctx, "recognize pdf", err)
		}
		log.Info().Int("pages", pages).Int("dpi", o.dpi).Msg("pdf recognized")
		return b.String(), nil

	default:
		return "", models.EngineError("ocr", models.ErrUnsupportedConversion,
			fmt.Sprintf("unsupported file type for OCR: %s; only images and PDF are supported", ext), nil)
	}
}

func (o *OCR) wrap(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return models.EngineError("ocr", models.ErrEngineTimeout,
			fmt.Sprintf("ocr did not finish within %s", o.timeout), err)
	}
	o.log.Error().Err(err).Str("engine", "ocr").Msg(op + " failed")
	return models.EngineError("ocr", models.ErrEngineExecution, err.Error(), err)
}
