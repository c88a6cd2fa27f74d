package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/corpusworks/corpusd/internal/api"
	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/corpusworks/corpusd/internal/service"
)

type RetrievalService interface {
	Retrieve(ctx context.Context, query string, k int) (domain.RetrievalResult, error)
	RetrieveForDocumentQA(ctx context.Context, query string) (domain.RetrievalResult, error)
}

type RetrieveHandler struct {
	svc RetrievalService
}

func NewRetrieveHandler(svc RetrievalService) *RetrieveHandler {
	return &RetrieveHandler{svc: svc}
}

type RetrieveRequest struct {
	Query      string `json:"query"`
	TopK       int    `json:"top_k"`
	DocumentQA bool   `json:"document_qa"`
}

type RetrievedChunkResponse struct {
	SourceID   string  `json:"source_id"`
	SourceName string  `json:"source_name"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
}

type RetrieveResponse struct {
	Chunks  []RetrievedChunkResponse `json:"chunks"`
	Context string                   `json:"context"`
}

// Retrieve answers a query with the most relevant indexed chunks plus a
// preassembled context string.
func (h *RetrieveHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	var (
		result domain.RetrievalResult
		err    error
	)
	if req.DocumentQA {
		result, err = h.svc.RetrieveForDocumentQA(r.Context(), req.Query)
	} else {
		result, err = h.svc.Retrieve(r.Context(), req.Query, req.TopK)
	}
	if err != nil {
		api.HandleError(w, err)
		return
	}

	chunks := make([]RetrievedChunkResponse, len(result.Chunks))
	for i, c := range result.Chunks {
		chunks[i] = RetrievedChunkResponse{
			SourceID:   c.SourceID,
			SourceName: c.SourceName,
			ChunkIndex: c.ChunkIndex,
			Text:       c.Text,
			Score:      c.Score,
		}
	}

	api.Success(w, http.StatusOK, RetrieveResponse{
		Chunks:  chunks,
		Context: service.FormatContext(result),
	})
}
