package converters

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/akila/media-converter/models"
)

// FFmpeg transcodes audio and video. Codecs are picked by ffmpeg from the
// output extension.
type FFmpeg struct {
	bin     string
	timeout time.Duration
	log     zerolog.Logger
}

func NewFFmpeg(bin string, timeout time.Duration, log zerolog.Logger) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{bin: bin, timeout: timeout, log: log}
}

func (c *FFmpeg) Kind() models.EngineKind { return models.EngineAudioVideo }

// Convert runs `ffmpeg -nostdin -y -i in out`. -nostdin keeps ffmpeg from
// waiting on a terminal that a server process does not have.
func (c *FFmpeg) Convert(ctx context.Context, in, out string, _ Scratch) error {
	return runTool(ctx, c.log, "ffmpeg", c.bin, c.timeout, "-nostdin", "-y", "-i", in, out)
}
