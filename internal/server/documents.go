package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/54b3r/ragserve-go/internal/logging"
	"github.com/54b3r/ragserve-go/internal/rag"
)

// handleAddDocument handles POST /api/documents.
func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := s.pipeline.AddDocument(r.Context(), req.Text, req.Metadata, req.AllowDuplicates)
	if err != nil {
		if errors.Is(err, rag.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.FromContext(r.Context()).Error("add document failed", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to add document: %v", err))
		return
	}

	s.metrics.documentsAdded.Inc()
	writeJSON(w, http.StatusOK, documentResponse{
		Success: true,
		ID:      id,
		Message: "Document added successfully",
	})
}

// handleBulkAdd handles POST /api/documents/bulk.
func (s *Server) handleBulkAdd(w http.ResponseWriter, r *http.Request) {
	var req bulkAddRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "documents cannot be empty")
		return
	}

	docs := make([]rag.DocumentInput, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = rag.DocumentInput{Text: d.Text, Metadata: d.Metadata}
	}

	ids, err := s.pipeline.BulkAdd(r.Context(), docs, req.AllowDuplicates)
	if err != nil {
		if errors.Is(err, rag.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.FromContext(r.Context()).Error("bulk add failed", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("bulk add failed: %v", err))
		return
	}

	s.metrics.documentsAdded.Add(float64(len(ids)))
	writeJSON(w, http.StatusOK, bulkAddResponse{
		Success:      true,
		AddedIDs:     ids,
		AddedCount:   len(ids),
		SkippedCount: len(docs) - len(ids),
	})
}

// handleGetDocument handles GET /api/documents/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	doc, err := s.pipeline.GetDocument(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Error("get document failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to retrieve document: %v", err))
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}

	writeJSON(w, http.StatusOK, getDocumentResponse{
		ID:       doc.ID,
		Text:     doc.Text,
		Metadata: doc.Metadata,
	})
}

// handleUpdateDocument handles PATCH /api/documents/{id}. Absent body fields
// are left unchanged; a text change re-embeds the document.
func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == nil && req.Metadata == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	ok, err := s.pipeline.UpdateDocument(r.Context(), id, req.Text, req.Metadata)
	if err != nil {
		if errors.Is(err, rag.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.FromContext(r.Context()).Error("update document failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to update document: %v", err))
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}

	writeJSON(w, http.StatusOK, documentResponse{
		Success: true,
		ID:      id,
		Message: "Document updated successfully",
	})
}

// handleDeleteDocument handles DELETE /api/documents/{id}.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	ok, err := s.pipeline.DeleteDocument(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Error("delete document failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to delete document: %v", err))
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}

	writeJSON(w, http.StatusOK, documentResponse{
		Success: true,
		ID:      id,
		Message: "Document deleted successfully",
	})
}
