package models

import (
	"fmt"
	"strings"
)

// EngineKind identifies the external engine family responsible for a route.
type EngineKind int

const (
	EngineRasterImage EngineKind = iota + 1
	EngineAudioVideo
	EngineOCR
	EngineDocument
)

func (k EngineKind) String() string {
	switch k {
	case EngineRasterImage:
		return "raster-image"
	case EngineAudioVideo:
		return "audio-video"
	case EngineOCR:
		return "ocr"
	case EngineDocument:
		return "document"
	default:
		return fmt.Sprintf("engine(%d)", int(k))
	}
}

// ConversionRequest is what a caller asks for: convert the file at InputPath
// from extension From to format To.
type ConversionRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	InputPath string `json:"-"`
}

// Validate checks that both formats are non-empty lowercase alphanumeric tokens.
func (r ConversionRequest) Validate() error {
	if !ValidFormat(r.From) {
		return NewError(ErrUnsupportedConversion, fmt.Sprintf("invalid source extension %q", r.From), nil)
	}
	if !ValidFormat(r.To) {
		return NewError(ErrUnsupportedConversion, fmt.Sprintf("invalid target format %q", r.To), nil)
	}
	return nil
}

// NormalizeFormat lowercases a user supplied extension and strips a leading dot.
func NormalizeFormat(s string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
}

// ValidFormat reports whether s is a non-empty lowercase alphanumeric token.
func ValidFormat(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Job is a single dispatch invocation. ID is the per-request identifier every
// working artifact name is derived from.
type Job struct {
	ID         string
	InputPath  string
	FromFormat string
	ToFormat   string
}

// OutputKind tells which half of a successful JobResult is populated.
type OutputKind int

const (
	OutputNone OutputKind = iota
	OutputFile
	OutputText
)

// JobResult is either a success carrying a file path or extracted text, or a
// failure carrying a ConversionError.
type JobResult struct {
	Success bool
	Output  OutputKind
	Path    string
	Text    string
	Error   *ConversionError
}

func FileResult(path string) JobResult {
	return JobResult{Success: true, Output: OutputFile, Path: path}
}

func TextResult(text string) JobResult {
	return JobResult{Success: true, Output: OutputText, Text: text}
}

// FailedResult converts any error into a failed result. Errors that are not
// already ConversionErrors are reported as unexpected internal errors.
func FailedResult(err error) JobResult {
	return JobResult{Error: AsConversionError(err)}
}
