package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/corpusworks/corpusd/internal/api"
	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/corpusworks/corpusd/internal/extract"
	"github.com/go-chi/chi/v5"
)

type IngestService interface {
	Ingest(ctx context.Context, sourceID, sourceName, rawText string) (*domain.Source, error)
	Remove(ctx context.Context, sourceID string) error
	ClearAll(ctx context.Context) error
	Sources(ctx context.Context) ([]domain.Source, error)
	HasDocuments(ctx context.Context) (bool, error)
}

// DocumentArchive stores uploaded originals. Optional; a nil archive means
// uploads are indexed without keeping the raw file.
type DocumentArchive interface {
	Put(ctx context.Context, sourceID, contentType string, body io.Reader) error
	Delete(ctx context.Context, sourceID string) error
}

type DocumentHandler struct {
	svc     IngestService
	archive DocumentArchive
}

func NewDocumentHandler(svc IngestService, archive DocumentArchive) *DocumentHandler {
	return &DocumentHandler{svc: svc, archive: archive}
}

type IngestTextRequest struct {
	SourceID   string `json:"source_id"`
	SourceName string `json:"source_name"`
	Text       string `json:"text"`
}

type SourceResponse struct {
	SourceID   string `json:"source_id"`
	SourceName string `json:"source_name"`
	ChunkCount int    `json:"chunk_count"`
	IngestedAt string `json:"ingested_at,omitempty"`
}

func sourceToResponse(s domain.Source) SourceResponse {
	resp := SourceResponse{
		SourceID:   s.ID,
		SourceName: s.Name,
		ChunkCount: s.ChunkCount,
	}
	if !s.IngestedAt.IsZero() {
		resp.IngestedAt = s.IngestedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

const maxUploadBytes = 20 * 1024 * 1024

// Upload accepts a multipart file upload, extracts its text, and indexes it
// under a source id derived from the filename.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}

	text, err := extract.Text(header.Filename, bytes.NewReader(raw))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	sourceID := extract.SourceID(header.Filename)

	if h.archive != nil {
		contentType := header.Header.Get("Content-Type")
		if err := h.archive.Put(r.Context(), sourceID, contentType, bytes.NewReader(raw)); err != nil {
			// The index is the source of truth; losing the archived
			// original is recoverable by re-uploading.
			log.Printf("documents: failed to archive %q: %v", sourceID, err)
		}
	}

	source, err := h.svc.Ingest(r.Context(), sourceID, header.Filename, text)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, sourceToResponse(*source))
}

// IngestText indexes raw text supplied directly in the request body.
func (h *DocumentHandler) IngestText(w http.ResponseWriter, r *http.Request) {
	var req IngestTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SourceID == "" {
		api.Error(w, http.StatusBadRequest, "source_id is required")
		return
	}
	if req.Text == "" {
		api.Error(w, http.StatusBadRequest, "text is required")
		return
	}

	source, err := h.svc.Ingest(r.Context(), req.SourceID, req.SourceName, req.Text)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, sourceToResponse(*source))
}

type DocumentListResponse struct {
	Sources      []SourceResponse `json:"sources"`
	HasDocuments bool             `json:"has_documents"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.svc.Sources(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]SourceResponse, len(sources))
	for i, s := range sources {
		responses[i] = sourceToResponse(s)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Sources:      responses,
		HasDocuments: len(sources) > 0,
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source")
	if sourceID == "" {
		api.Error(w, http.StatusBadRequest, "source is required")
		return
	}

	if err := h.svc.Remove(r.Context(), sourceID); err != nil {
		api.HandleError(w, err)
		return
	}

	if h.archive != nil {
		if err := h.archive.Delete(r.Context(), sourceID); err != nil {
			log.Printf("documents: failed to delete archived %q: %v", sourceID, err)
		}
	}

	api.Success(w, http.StatusOK, map[string]string{"removed": sourceID})
}

func (h *DocumentHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearAll(r.Context()); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "cleared"})
}
