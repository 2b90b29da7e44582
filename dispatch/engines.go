package dispatch

import (
	"github.com/rs/zerolog"

	"github.com/akila/media-converter/config"
	"github.com/akila/media-converter/converters"
	"github.com/akila/media-converter/models"
)

// EngineManager holds the adapter serving each engine kind.
type EngineManager struct {
	Image    converters.FileConverter
	Media    converters.FileConverter
	Document converters.FileConverter
	OCR      converters.TextExtractor
}

// NewEngineManager builds the adapters from configuration. The OCR
// collaborators are passed in so callers pick the recognition backend.
func NewEngineManager(cfg *config.Config, recognizer converters.Recognizer, rasterizer converters.Rasterizer, log zerolog.Logger) *EngineManager {
	return &EngineManager{
		Image:    converters.NewImageMagick(cfg.ImageMagickBin, cfg.ImageTimeout, log),
		Media:    converters.NewFFmpeg(cfg.FFmpegBin, cfg.MediaTimeout, log),
		Document: converters.NewLibreOffice(cfg.SofficeBin, cfg.DocumentTimeout, log),
		OCR:      converters.NewOCR(recognizer, rasterizer, cfg.OCRDPI, cfg.OCRTimeout, log),
	}
}

// fileConverter returns the file producing adapter for kind, or nil.
func (m *EngineManager) fileConverter(kind models.EngineKind) converters.FileConverter {
	switch kind {
	case models.EngineRasterImage:
		return m.Image
	case models.EngineAudioVideo:
		return m.Media
	case models.EngineDocument:
		return m.Document
	default:
		return nil
	}
}
