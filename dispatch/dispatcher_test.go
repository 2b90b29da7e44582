package dispatch

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akila/media-converter/converters"
	"github.com/akila/media-converter/models"
	"github.com/akila/media-converter/routes"
	"github.com/akila/media-converter/workspace"
)

type fakeConverter struct {
	kind    models.EngineKind
	calls   int
	write   string
	err     error
	panicky bool
	scratch string
}

func (f *fakeConverter) Kind() models.EngineKind { return f.kind }

func (f *fakeConverter) Convert(_ context.Context, in, out string, scratch converters.Scratch) error {
	f.calls++
	if f.panicky {
		panic("engine blew up")
	}
	if f.scratch != "" {
		dir, err := scratch.ScratchDir(f.scratch)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "profile.lock"), []byte("x"), 0o644); err != nil {
			return err
		}
	}
	if f.write != "" || f.err == nil {
		if err := os.WriteFile(out, []byte(f.write), 0o644); err != nil {
			return err
		}
	}
	return f.err
}

type fakeExtractor struct {
	calls int
	from  string
	text  string
	err   error
}

func (f *fakeExtractor) Kind() models.EngineKind { return models.EngineOCR }

func (f *fakeExtractor) Extract(_ context.Context, _, from string) (string, error) {
	f.calls++
	f.from = from
	return f.text, f.err
}

type fixture struct {
	ws       *workspace.Manager
	engines  *EngineManager
	image    *fakeConverter
	media    *fakeConverter
	document *fakeConverter
	ocr      *fakeExtractor
	d        *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ws, err := workspace.New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	f := &fixture{
		ws:       ws,
		image:    &fakeConverter{kind: models.EngineRasterImage, write: "png-bytes"},
		media:    &fakeConverter{kind: models.EngineAudioVideo, write: "mp3-bytes"},
		document: &fakeConverter{kind: models.EngineDocument, write: "docx-bytes"},
		ocr:      &fakeExtractor{text: "recognized text"},
	}
	f.engines = &EngineManager{Image: f.image, Media: f.media, Document: f.document, OCR: f.ocr}
	f.d = NewDispatcher(routes.Default(), f.engines, zerolog.Nop())
	return f
}

// run saves an input named like the user's upload and dispatches it.
func (f *fixture) run(t *testing.T, filename, to string) (models.JobResult, string) {
	t.Helper()
	id := f.ws.NewRequestID()
	scope, err := f.ws.Scope(id)
	require.NoError(t, err)
	ext := models.NormalizeFormat(filepath.Ext(filename))
	in, err := scope.SaveInput(ext, strings.NewReader("payload of "+filename))
	require.NoError(t, err)

	res := f.d.HandleConversion(context.Background(), scope, models.Job{
		ID: id, InputPath: in, FromFormat: ext, ToFormat: to,
	})
	return res, id
}

func (f *fixture) remaining(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.ws.Root())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestHeicToPNG(t *testing.T) {
	f := newFixture(t)
	res, id := f.run(t, "photo.heic", "png")

	require.True(t, res.Success, "%v", res.Error)
	assert.Equal(t, models.OutputFile, res.Output)
	assert.Equal(t, filepath.Join(f.ws.Root(), id+"_output.png"), res.Path)
	assert.Equal(t, 1, f.image.calls)
	assert.Equal(t, []string{id + "_output.png"}, f.remaining(t))
}

func TestMKVToMP3(t *testing.T) {
	f := newFixture(t)
	res, id := f.run(t, "clip.mkv", "mp3")

	require.True(t, res.Success, "%v", res.Error)
	assert.Equal(t, models.OutputFile, res.Output)
	assert.True(t, strings.HasSuffix(res.Path, ".mp3"))
	assert.Equal(t, 1, f.media.calls)
	assert.Equal(t, []string{id + "_output.mp3"}, f.remaining(t))
}

func TestPDFToDocx(t *testing.T) {
	f := newFixture(t)
	res, _ := f.run(t, "report.pdf", "docx")

	require.True(t, res.Success, "%v", res.Error)
	assert.Equal(t, 1, f.document.calls)
	assert.Zero(t, f.ocr.calls)
}

func TestPNGToTextLeavesNoFile(t *testing.T) {
	f := newFixture(t)
	res, _ := f.run(t, "scan.png", "txt")

	require.True(t, res.Success, "%v", res.Error)
	assert.Equal(t, models.OutputText, res.Output)
	assert.Equal(t, "recognized text", res.Text)
	assert.Empty(t, res.Path)
	assert.Empty(t, f.remaining(t))
	assert.Zero(t, f.image.calls)
}

func TestPDFToTextUsesOCR(t *testing.T) {
	f := newFixture(t)
	res, _ := f.run(t, "report.pdf", "txt")

	require.True(t, res.Success)
	assert.Equal(t, 1, f.ocr.calls)
	assert.Equal(t, "pdf", f.ocr.from)
	assert.Zero(t, f.document.calls)
}

type echoRecognizer struct{}

func (echoRecognizer) RecognizeFile(context.Context, string) (string, error) { return "from image", nil }

func (echoRecognizer) RecognizeImage(context.Context, image.Image, int) (string, error) {
	return "from page", nil
}

type noPages struct{}

func (noPages) Rasterize(context.Context, string, float64, func(int, image.Image) error) error {
	return nil
}

func TestOCRUsesJobFormatForExtensionlessInput(t *testing.T) {
	f := newFixture(t)
	f.engines.OCR = converters.NewOCR(echoRecognizer{}, noPages{}, 300, time.Minute, zerolog.Nop())

	scope, err := f.ws.Scope(f.ws.NewRequestID())
	require.NoError(t, err)
	in, err := scope.ScratchDir("upload")
	require.NoError(t, err)
	upload := filepath.Join(in, "upload.bin")
	require.NoError(t, os.WriteFile(upload, []byte("pixels"), 0o644))

	res := f.d.HandleConversion(context.Background(), scope, models.Job{
		ID: scope.ID(), InputPath: upload, FromFormat: "png", ToFormat: "txt",
	})
	require.True(t, res.Success, "%v", res.Error)
	assert.Equal(t, "from image", res.Text)
	assert.Empty(t, f.remaining(t))
}

func TestScratchDirRemovedWithRequest(t *testing.T) {
	f := newFixture(t)
	f.document.scratch = "soffice"

	res, id := f.run(t, "report.pdf", "docx")
	require.True(t, res.Success, "%v", res.Error)
	assert.Equal(t, []string{id + "_output.docx"}, f.remaining(t))
}

func TestEngineWiredUnderWrongKindIsRejected(t *testing.T) {
	f := newFixture(t)
	f.engines.Image = f.media

	res, _ := f.run(t, "photo.png", "pdf")

	require.False(t, res.Success)
	assert.Equal(t, models.ErrUnexpectedInternal, res.Error.Kind)
	assert.Zero(t, f.media.calls)
	assert.Empty(t, f.remaining(t))
}

func TestUnsupportedConversionInvokesNothing(t *testing.T) {
	f := newFixture(t)
	res, _ := f.run(t, "report.pdf", "csv")

	require.False(t, res.Success)
	assert.Equal(t, models.ErrUnsupportedConversion, res.Error.Kind)
	assert.Contains(t, res.Error.Message, "pdf")
	assert.Contains(t, res.Error.Message, "csv")
	assert.Zero(t, f.image.calls+f.media.calls+f.document.calls+f.ocr.calls)
	assert.Empty(t, f.remaining(t))
}

func TestInvalidFormatRejected(t *testing.T) {
	f := newFixture(t)
	res, _ := f.run(t, "photo.png", "../pdf")

	require.False(t, res.Success)
	assert.Equal(t, models.ErrUnsupportedConversion, res.Error.Kind)
	assert.Empty(t, f.remaining(t))
}

func TestEngineFailureCarriesDiagnosticAndCleansUp(t *testing.T) {
	f := newFixture(t)
	f.media.write = "partial"
	f.media.err = models.EngineError("ffmpeg", models.ErrEngineExecution, "Invalid data found when processing input", nil)

	res, _ := f.run(t, "clip.mkv", "mp3")

	require.False(t, res.Success)
	assert.Equal(t, models.ErrEngineExecution, res.Error.Kind)
	assert.Equal(t, "Invalid data found when processing input", res.Error.Message)
	assert.Empty(t, f.remaining(t))
}

func TestSuccessWithEmptyOutputIsFailure(t *testing.T) {
	f := newFixture(t)
	f.image.write = ""

	res, _ := f.run(t, "photo.jpg", "webp")

	require.False(t, res.Success)
	assert.Equal(t, models.ErrOutputMissingOrEmpty, res.Error.Kind)
	assert.Equal(t, MsgOutputMissing, res.Error.Message)
	assert.Empty(t, f.remaining(t))
}

type silentConverter struct{}

func (silentConverter) Kind() models.EngineKind { return models.EngineRasterImage }

func (silentConverter) Convert(context.Context, string, string, converters.Scratch) error { return nil }

type staticExtractor struct{}

func (staticExtractor) Kind() models.EngineKind { return models.EngineOCR }

func (staticExtractor) Extract(context.Context, string, string) (string, error) { return "static", nil }

func TestSuccessWithMissingOutputIsFailure(t *testing.T) {
	f := newFixture(t)
	f.engines.Image = silentConverter{}

	res, _ := f.run(t, "photo.gif", "png")

	require.False(t, res.Success)
	assert.Equal(t, models.ErrOutputMissingOrEmpty, res.Error.Kind)
	assert.Empty(t, f.remaining(t))
}

func TestOCRFailure(t *testing.T) {
	f := newFixture(t)
	f.ocr.err = models.EngineError("ocr", models.ErrEngineTimeout, "ocr did not finish within 5m0s", nil)

	res, _ := f.run(t, "scan.tiff", "txt")

	require.False(t, res.Success)
	assert.Equal(t, models.ErrEngineTimeout, res.Error.Kind)
	assert.Empty(t, f.remaining(t))
}

func TestPanicBecomesInternalError(t *testing.T) {
	f := newFixture(t)
	f.image.panicky = true

	var res models.JobResult
	require.NotPanics(t, func() { res, _ = f.run(t, "photo.png", "pdf") })

	require.False(t, res.Success)
	assert.Equal(t, models.ErrUnexpectedInternal, res.Error.Kind)
	assert.Contains(t, res.Error.Message, "engine blew up")
	assert.Empty(t, f.remaining(t))
}

func TestMissingEngineIsInternalError(t *testing.T) {
	f := newFixture(t)
	f.engines.Document = nil

	res, _ := f.run(t, "report.pdf", "docx")

	require.False(t, res.Success)
	assert.Equal(t, models.ErrUnexpectedInternal, res.Error.Kind)
	assert.Empty(t, f.remaining(t))
}

func TestConcurrentRequestsDoNotCollide(t *testing.T) {
	f := newFixture(t)
	f.engines.OCR = staticExtractor{}
	const n = 20
	results := make(chan models.JobResult, n)
	for i := 0; i < n; i++ {
		go func() {
			id := f.ws.NewRequestID()
			scope, err := f.ws.Scope(id)
			if err != nil {
				results <- models.FailedResult(err)
				return
			}
			in, err := scope.SaveInput("png", strings.NewReader("x"))
			if err != nil {
				results <- models.FailedResult(err)
				return
			}
			results <- f.d.HandleConversion(context.Background(), scope, models.Job{
				ID: id, InputPath: in, FromFormat: "png", ToFormat: "txt",
			})
		}()
	}
	for i := 0; i < n; i++ {
		res := <-results
		assert.True(t, res.Success)
	}
	assert.Empty(t, f.remaining(t))
}
