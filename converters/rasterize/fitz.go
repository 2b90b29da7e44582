// Package rasterize renders PDF pages to images with MuPDF through go-fitz.
package rasterize

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// ErrNoPages is returned for documents without a single page.
var ErrNoPages = errors.New("pdf has no pages")

// Fitz renders one page at a time so only a single page image is held in memory.
type Fitz struct{}

func New() *Fitz {
	return &Fitz{}
}

func (Fitz) Rasterize(ctx context.Context, path string, dpi float64, fn func(page int, img image.Image) error) error {
	doc, err := fitz.New(path)
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	count := doc.NumPage()
	if count == 0 {
		return ErrNoPages
	}

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			return fmt.Errorf("render page %d: %w", i+1, err)
		}
		if err := fn(i+1, img); err != nil {
			return err
		}
	}
	return nil
}
