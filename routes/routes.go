// Package routes maps a (source extension, target format) pair onto the
// engine that converts it.
package routes

import (
	"fmt"
	"sort"

	"github.com/akila/media-converter/models"
)

type set map[string]struct{}

func newSet(items ...string) set {
	s := make(set, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func (s set) has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Rule matches when the source extension is in Sources and the target format
// is in Targets.
type Rule struct {
	Name    string
	Sources set
	Targets set
	Engine  models.EngineKind
}

func (r Rule) matches(from, to string) bool {
	return r.Sources.has(from) && r.Targets.has(to)
}

// Table is an ordered rule list; the first matching rule wins.
type Table struct {
	rules []Rule
}

// NewTable builds a table evaluated in the order the rules are given.
func NewTable(rules ...Rule) *Table {
	return &Table{rules: rules}
}

// Default returns the production route table. OCR comes first so a pdf or
// image source asked for txt never reaches a file-producing rule.
func Default() *Table {
	return NewTable(
		Rule{
			Name:    "ocr",
			Sources: newSet("pdf", "jpg", "jpeg", "png", "tiff", "bmp", "webp"),
			Targets: newSet("txt"),
			Engine:  models.EngineOCR,
		},
		Rule{
			Name:    "pdf-to-docx",
			Sources: newSet("pdf"),
			Targets: newSet("docx"),
			Engine:  models.EngineDocument,
		},
		Rule{
			Name:    "image",
			Sources: newSet("jpg", "jpeg", "png", "webp", "gif", "heic"),
			Targets: newSet("pdf", "png", "jpg", "webp", "gif", "heic"),
			Engine:  models.EngineRasterImage,
		},
		Rule{
			Name:    "audio-video",
			Sources: newSet("mp4", "mov", "avi", "mkv", "flv", "wmv", "webm", "ogg", "wav", "aac", "flac"),
			Targets: newSet("mp3", "mp4", "avi", "mov"),
			Engine:  models.EngineAudioVideo,
		},
	)
}

// Resolve returns the engine for the pair, or an ErrUnsupportedConversion
// error naming both formats.
func (t *Table) Resolve(from, to string) (models.EngineKind, error) {
	for _, r := range t.rules {
		if r.matches(from, to) {
			return r.Engine, nil
		}
	}
	return 0, models.NewError(models.ErrUnsupportedConversion,
		fmt.Sprintf("unsupported conversion: %s → %s", from, to), nil)
}

// Rules returns the rules in evaluation order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Formats lists, for every known source extension, the target formats it
// resolves to. Targets are sorted.
func (t *Table) Formats() map[string][]string {
	targets := make(map[string]set)
	for _, r := range t.rules {
		for src := range r.Sources {
			if targets[src] == nil {
				targets[src] = newSet()
			}
			for dst := range r.Targets {
				targets[src][dst] = struct{}{}
			}
		}
	}
	out := make(map[string][]string, len(targets))
	for src, dst := range targets {
		out[src] = dst.sorted()
	}
	return out
}
