package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectio/internal/interfaces"
	"github.com/ternarybob/lectio/internal/models"
)

// maxUploadBytes bounds multipart upload memory and body size
const maxUploadBytes = 32 << 20

// DocumentHandler handles document lifecycle HTTP requests
type DocumentHandler struct {
	ingestService   interfaces.IngestService
	documentService interfaces.DocumentService
	pdfExtractor    interfaces.PDFExtractor
	storage         interfaces.DocumentStorage
	logger          arbor.ILogger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(
	ingestService interfaces.IngestService,
	documentService interfaces.DocumentService,
	pdfExtractor interfaces.PDFExtractor,
	storage interfaces.DocumentStorage,
	logger arbor.ILogger,
) *DocumentHandler {
	return &DocumentHandler{
		ingestService:   ingestService,
		documentService: documentService,
		pdfExtractor:    pdfExtractor,
		storage:         storage,
		logger:          logger,
	}
}

// documentView is the API shape of a document. Chunk vectors and raw file
// bytes never leave through listing or lookup responses.
type documentView struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Status           string    `json:"status"`
	Summary          string    `json:"summary,omitempty"`
	ChatMessageCount int       `json:"chat_message_count"`
	ChunkCount       int       `json:"chunk_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toView(doc *models.Document) documentView {
	return documentView{
		ID:               doc.ID,
		Title:            doc.Title,
		Status:           string(doc.Status),
		Summary:          doc.Summary,
		ChatMessageCount: doc.ChatMessageCount,
		ChunkCount:       len(doc.Chunks),
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}

// UploadHandler handles POST /api/documents/upload. It accepts a multipart
// PDF (field "document") and admits it for background vectorization.
func (h *DocumentHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ownerID := RequireOwner(w, r)
	if ownerID == "" {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	// Quota check before extraction: an over-quota upload is rejected
	// without parsing the PDF.
	if err := h.ingestService.CanAdmit(r.Context(), ownerID); err != nil {
		h.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("Document admission rejected")
		WriteServiceError(w, err)
		return
	}

	content, err := h.pdfExtractor.ExtractText(r.Context(), data)
	if err != nil {
		h.logger.Warn().Err(err).Str("filename", header.Filename).Msg("PDF text extraction failed")
		WriteError(w, http.StatusBadRequest, "Failed to process the PDF file")
		return
	}

	doc, _, err := h.ingestService.Ingest(r.Context(), ownerID, header.Filename, content, data)
	if err != nil {
		h.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("Document admission rejected")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "File uploaded, processing started",
		"document": toView(doc),
	})
}

// ListHandler handles GET /api/documents for the requesting owner.
func (h *DocumentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ownerID := RequireOwner(w, r)
	if ownerID == "" {
		return
	}

	docs, err := h.documentService.ListByOwner(r.Context(), ownerID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	views := make([]documentView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, toView(doc))
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": views,
		"count":     len(views),
	})
}

// GetHandler handles GET /api/documents/{id}.
func (h *DocumentHandler) GetHandler(w http.ResponseWriter, r *http.Request, documentID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ownerID := RequireOwner(w, r)
	if ownerID == "" {
		return
	}

	doc, err := h.documentService.Get(r.Context(), documentID, ownerID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toView(doc))
}

// FileHandler handles GET /api/documents/{id}/file, streaming the original
// uploaded bytes back to the owner.
func (h *DocumentHandler) FileHandler(w http.ResponseWriter, r *http.Request, documentID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ownerID := RequireOwner(w, r)
	if ownerID == "" {
		return
	}

	data, err := h.documentService.GetFile(r.Context(), documentID, ownerID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", documentID+".pdf"))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// DeleteHandler handles DELETE /api/documents/{id}.
func (h *DocumentHandler) DeleteHandler(w http.ResponseWriter, r *http.Request, documentID string) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	ownerID := RequireOwner(w, r)
	if ownerID == "" {
		return
	}

	if err := h.documentService.Delete(r.Context(), documentID, ownerID); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Document deleted successfully",
	})
}

// StatsHandler handles GET /api/documents/stats.
func (h *DocumentHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.storage.GetStats()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to compute document stats")
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
