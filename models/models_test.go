package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversionRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     ConversionRequest
		wantErr bool
	}{
		{name: "valid", req: ConversionRequest{From: "heic", To: "png"}},
		{name: "digits", req: ConversionRequest{From: "mp4", To: "mp3"}},
		{name: "empty source", req: ConversionRequest{From: "", To: "png"}, wantErr: true},
		{name: "empty target", req: ConversionRequest{From: "png", To: ""}, wantErr: true},
		{name: "uppercase", req: ConversionRequest{From: "PNG", To: "pdf"}, wantErr: true},
		{name: "dot", req: ConversionRequest{From: ".png", To: "pdf"}, wantErr: true},
		{name: "path", req: ConversionRequest{From: "png", To: "../pdf"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Equal(t, ErrUnsupportedConversion, KindOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNormalizeFormat(t *testing.T) {
	assert.Equal(t, "png", NormalizeFormat(" .PNG "))
	assert.Equal(t, "mp3", NormalizeFormat("mp3"))
}

func TestAsConversionError(t *testing.T) {
	assert.Nil(t, AsConversionError(nil))

	ce := EngineError("ffmpeg", ErrEngineExecution, "boom", nil)
	wrapped := fmt.Errorf("run: %w", ce)
	assert.Same(t, ce, AsConversionError(wrapped))
	assert.Equal(t, "ffmpeg: boom", ce.Error())

	foreign := errors.New("disk full")
	got := AsConversionError(foreign)
	assert.Equal(t, ErrUnexpectedInternal, got.Kind)
	assert.ErrorIs(t, got, foreign)
}

func TestResultConstructors(t *testing.T) {
	f := FileResult("/tmp/x.png")
	assert.True(t, f.Success)
	assert.Equal(t, OutputFile, f.Output)
	assert.Empty(t, f.Text)

	txt := TextResult("hello")
	assert.True(t, txt.Success)
	assert.Equal(t, OutputText, txt.Output)
	assert.Empty(t, txt.Path)

	failed := FailedResult(NewError(ErrEngineTimeout, "slow", nil))
	assert.False(t, failed.Success)
	assert.Equal(t, OutputNone, failed.Output)
	assert.Equal(t, ErrEngineTimeout, failed.Error.Kind)
}

func TestEngineKindString(t *testing.T) {
	assert.Equal(t, "ocr", EngineOCR.String())
	assert.Equal(t, "engine(99)", EngineKind(99).String())
}
