package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/akila/media-converter/dispatch"
	"github.com/akila/media-converter/models"
	"github.com/akila/media-converter/routes"
	"github.com/akila/media-converter/workspace"
)

type ConversionHandler struct {
	dispatcher     *dispatch.Dispatcher
	workspace      *workspace.Manager
	routes         *routes.Table
	maxUploadBytes int64
	log            zerolog.Logger
}

func NewConversionHandler(d *dispatch.Dispatcher, ws *workspace.Manager, table *routes.Table, maxUploadBytes int64, log zerolog.Logger) *ConversionHandler {
	return &ConversionHandler{
		dispatcher:     d,
		workspace:      ws,
		routes:         table,
		maxUploadBytes: maxUploadBytes,
		log:            log.With().Str("component", "http").Logger(),
	}
}

type convertResponse struct {
	Success        bool    `json:"success"`
	OutputFilename *string `json:"output_filename"`
	DownloadURL    *string `json:"download_url,omitempty"`
	TextContent    *string `json:"text_content"`
	Error          string  `json:"error,omitempty"`
	ErrorKind      string  `json:"error_kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, status int, kind models.ErrorKind, msg string) {
	writeJSON(w, status, convertResponse{Error: msg, ErrorKind: string(kind)})
}

// HandleConvert accepts a multipart upload ("file") and a target format
// ("target_format") and runs one conversion.
func (h *ConversionHandler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeFailure(w, http.StatusBadRequest, "", "File too large or invalid form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "", "No file part in the request")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeFailure(w, http.StatusBadRequest, "", "No selected file")
		return
	}
	to := models.NormalizeFormat(r.FormValue("target_format"))
	if to == "" {
		writeFailure(w, http.StatusBadRequest, "", "No target format specified")
		return
	}
	from := models.NormalizeFormat(filepath.Ext(header.Filename))
	if from == "" {
		writeFailure(w, http.StatusBadRequest, "", "File has no extension")
		return
	}
	if err := (models.ConversionRequest{From: from, To: to}).Validate(); err != nil {
		ce := models.AsConversionError(err)
		writeFailure(w, http.StatusBadRequest, ce.Kind, ce.Message)
		return
	}

	reqID := h.workspace.NewRequestID()
	log := h.log.With().Str("request_id", reqID).Logger()
	log.Info().Str("filename", header.Filename).Str("from", from).Str("to", to).Msg("conversion request received")

	scope, err := h.workspace.Scope(reqID)
	if err != nil {
		log.Error().Err(err).Msg("failed to open workspace scope")
		writeFailure(w, http.StatusInternalServerError, models.ErrUnexpectedInternal, "Internal server error")
		return
	}
	inputPath, err := scope.SaveInput(from, file)
	if err != nil {
		scope.Release()
		log.Error().Err(err).Msg("failed to save upload")
		writeFailure(w, http.StatusInternalServerError, models.ErrUnexpectedInternal, "Internal server error")
		return
	}

	result := h.dispatcher.HandleConversion(r.Context(), scope, models.Job{
		ID:         reqID,
		InputPath:  inputPath,
		FromFormat: from,
		ToFormat:   to,
	})

	if !result.Success {
		writeFailure(w, statusFor(result.Error.Kind), result.Error.Kind, result.Error.Message)
		return
	}

	resp := convertResponse{Success: true}
	switch result.Output {
	case models.OutputText:
		text := result.Text
		resp.TextContent = &text
	case models.OutputFile:
		name := filepath.Base(result.Path)
		link := "/download/" + name
		resp.OutputFilename = &name
		resp.DownloadURL = &link
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusFor(kind models.ErrorKind) int {
	if kind == models.ErrUnsupportedConversion {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// HandleDownload streams a converted file once and deletes it afterwards.
func (h *ConversionHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	log := h.log.With().Str("filename", name).Logger()

	err := h.workspace.Deliver(name, func(f *os.File, info os.FileInfo) error {
		contentType := mime.TypeByExtension(filepath.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		_, err := io.Copy(w, f)
		return err
	})

	switch {
	case err == nil:
		log.Info().Msg("download served")
	case errors.Is(err, workspace.ErrInvalidName):
		log.Warn().Err(err).Msg("rejected download path")
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid file path"})
	case errors.Is(err, workspace.ErrNotAvailable):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "File not found"})
	default:
		// Headers are already out if the copy failed midway; only log.
		log.Error().Err(err).Msg("download failed")
	}
}

// HandleFormats lists the target formats each source extension converts to.
func (h *ConversionHandler) HandleFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.routes.Formats())
}

func (h *ConversionHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
