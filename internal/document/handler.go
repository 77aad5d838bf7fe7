package handler

import (
	"encoding/json"
	"net/http"

	"collabdocs/internal/document/model"
	"collabdocs/internal/document/service"
	"collabdocs/middleware"
	"collabdocs/pkg/docerr"
	"collabdocs/pkg/logger"
)

type DocumentHandler struct {
	Service *service.DocumentService
}

func NewDocumentHandler(service *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{Service: service}
}

// StatusFor maps an error onto the HTTP status clients translate back into the
// error taxonomy.
func StatusFor(err error) int {
	switch docerr.Classify(err) {
	case docerr.KindUnreachable:
		return http.StatusServiceUnavailable
	case docerr.KindNotFound:
		return http.StatusNotFound
	case docerr.KindPermission:
		return http.StatusForbidden
	case docerr.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusFor(err))
	json.NewEncoder(w).Encode(model.ErrorResponse{Error: err.Error(), Kind: docerr.Classify(err).String()})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Errorf("Handler: failed to encode response: %v", err)
	}
}

func identity(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	actor, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
	return actor, ok
}

func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := identity(w, r)
	if !ok {
		return
	}

	var req model.CreateDocRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // An empty body means the default title.

	doc, err := h.Service.CreateDocument(r.Context(), actor, req.Title)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create document: %v", err)
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(doc)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}
	actor, ok := identity(w, r)
	if !ok {
		return
	}

	doc, err := h.Service.GetDocument(r.Context(), actor, docID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, doc)
}

func (h *DocumentHandler) SaveDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := identity(w, r)
	if !ok {
		return
	}

	var req model.SaveDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Snapshot.ID == "" {
		http.Error(w, "Document ID is required", http.StatusBadRequest)
		return
	}

	written, err := h.Service.SaveDocument(r.Context(), actor, req.Snapshot, req.Options)
	if err != nil {
		logger.Sugar.Errorf("Error saving document %s: %v", req.Snapshot.ID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, written)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}
	actor, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeleteDocument(r.Context(), actor, docID); err != nil {
		logger.Sugar.Errorf("Handler: Failed to delete document %s: %v", docID, err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateDocument renames a document.
func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}
	actor, ok := identity(w, r)
	if !ok {
		return
	}

	var req model.UpdateDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.RenameDocument(r.Context(), actor, docID, req.Title)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to update title for doc %s: %v", docID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, doc)
}

func (h *DocumentHandler) AddCollaborator(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := identity(w, r)
	if !ok {
		return
	}

	var req model.InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.InviteCollaborator(r.Context(), actor, req)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to invite collaborator: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, doc)
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := identity(w, r)
	if !ok {
		return
	}

	docs, err := h.Service.GetDocuments(r.Context(), actor, r.URL.Query().Get("orderBy"))
	if err != nil {
		logger.Sugar.Errorf("Error fetching documents: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, docs)
}
