package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/bz888/eyesy-bot/internal/persist"
)

// maxImportSize bounds uploaded chat files.
const maxImportSize = 32 << 20

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{PortWorking: true, ServerWorking: true})
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	defer r.Body.Close()

	view := newNDJSONPresenter(w)
	err := s.controller(view).OnUserSubmit(r.Context(), req.Text)
	if err != nil {
		s.localLogger.Warn("chat request ended with: ", err)
	}
	view.end(err)
}

func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	models, err := s.models.Models(r.Context())
	if err != nil {
		s.localLogger.Error("list models: ", err)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, models)
}

func (s *Server) currentModelHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModelResponse{Model: s.session.Model()})
}

func (s *Server) selectModelHandler(w http.ResponseWriter, r *http.Request) {
	var req ModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "model is required"})
		return
	}
	s.session.SetModel(model)
	s.localLogger.Info("selected model ", model)
	writeJSON(w, http.StatusOK, ModelResponse{Model: model})
}

func (s *Server) clearHandler(w http.ResponseWriter, r *http.Request) {
	s.controller(discard{}).OnClearRequested()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	data, err := s.controller(discard{}).OnExportRequested()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", persist.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": persist.DefaultFilename}))
	w.Write(data)
}

// importHandler accepts either the raw chat.json body or a multipart form
// with the file in the "file" field.
func (s *Server) importHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)

	var body io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		defer file.Close()
		if !persist.IsJSONName(header.Filename) {
			writeError(w, fmt.Errorf("%s: %w", header.Filename, persist.ErrNotJSONFile))
			return
		}
		body = file
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := s.controller(discard{}).OnImportRequested(bytes.NewReader(raw)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}
