package converters

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/akila/media-converter/models"
)

// ImageMagick converts between raster formats (and raster to PDF) with
// `convert in out`. The output format follows the output extension.
type ImageMagick struct {
	bin     string
	timeout time.Duration
	log     zerolog.Logger
}

func NewImageMagick(bin string, timeout time.Duration, log zerolog.Logger) *ImageMagick {
	if bin == "" {
		bin = "convert"
	}
	return &ImageMagick{bin: bin, timeout: timeout, log: log}
}

func (c *ImageMagick) Kind() models.EngineKind { return models.EngineRasterImage }

func (c *ImageMagick) Convert(ctx context.Context, in, out string, _ Scratch) error {
	return runTool(ctx, c.log, "imagemagick", c.bin, c.timeout, in, out)
}
