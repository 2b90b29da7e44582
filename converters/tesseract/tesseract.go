// Package tesseract recognizes text with libtesseract through gosseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strconv"

	"github.com/otiai10/gosseract/v2"
)

// Engine creates one gosseract client per call; clients are not safe for
// concurrent use and requests run in parallel.
type Engine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// New returns an Engine recognizing the given languages, e.g. "tur", "eng".
func New(languages ...string) *Engine {
	return &Engine{
		languages:     append([]string(nil), languages...),
		clientFactory: gosseract.NewClient,
	}
}

// RecognizeFile lets leptonica decode the file at path itself.
func (e *Engine) RecognizeFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c, err := e.client()
	if err != nil {
		return "", err
	}
	defer c.Close()

	if err := c.SetImage(path); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	return text(c)
}

// RecognizeImage encodes img as PNG and recognizes it at the given resolution.
func (e *Engine) RecognizeImage(ctx context.Context, img image.Image, dpi int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode page: %w", err)
	}

	c, err := e.client()
	if err != nil {
		return "", err
	}
	defer c.Close()

	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if dpi > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(dpi)); err != nil {
			return "", fmt.Errorf("set dpi: %w", err)
		}
	}
	return text(c)
}

func (e *Engine) client() (*gosseract.Client, error) {
	c := e.clientFactory()
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			c.Close()
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	return c, nil
}

func text(c *gosseract.Client) (string, error) {
	out, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return out, nil
}
