package handler

import (
	"net/http"
	"strings"

	"github.com/tranvq/exambank/internal/fileio"
	"github.com/tranvq/exambank/internal/model"
)

// maxDocumentSize caps document uploads at 16MB.
const maxDocumentSize = 16 << 20

type documentRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// handleCreateDocument accepts either a multipart upload (the text is
// extracted from the file) or a JSON body with pasted content.
func (h *Handler) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.createDocumentFromUpload(w, r, user)
		return
	}

	var req documentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	id, err := h.store.CreateDocument(model.Document{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Content:     req.Content,
		FileType:    "txt",
		OwnerID:     user.ID,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}
	h.respondDocument(w, http.StatusCreated, id)
}

func (h *Handler) createDocumentFromUpload(w http.ResponseWriter, r *http.Request, user *model.User) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentSize)
	if err := r.ParseMultipartForm(maxDocumentSize); err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = header.Filename
	}

	path, err := h.files.Save("documents", header.Filename, file, fileio.DocumentExtensions)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	content, err := fileio.ExtractText(path)
	if err != nil {
		_ = h.files.Remove(path)
		respondStoreError(w, err)
		return
	}

	id, err := h.store.CreateDocument(model.Document{
		Title:       title,
		Description: r.FormValue("description"),
		Content:     content,
		FilePath:    path,
		FileType:    fileio.Ext(header.Filename),
		OwnerID:     user.ID,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}
	h.respondDocument(w, http.StatusCreated, id)
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	docs, err := h.store.ListDocumentsByOwner(user.ID, 0)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *Handler) handleSearchDocuments(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	docs, err := h.store.SearchDocuments(r.URL.Query().Get("q"), user.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}

	var req documentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	if err := h.store.UpdateDocument(doc.ID, strings.TrimSpace(req.Title), req.Description, req.Content); err != nil {
		respondStoreError(w, err)
		return
	}
	h.respondDocument(w, http.StatusOK, doc.ID)
}

func (h *Handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteDocument(doc.ID); err != nil {
		respondStoreError(w, err)
		return
	}
	_ = h.files.Remove(doc.FilePath)
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ownedDocument loads the document from the URL and enforces that the
// requester owns it. On failure it writes the response and returns
// ok=false.
func (h *Handler) ownedDocument(w http.ResponseWriter, r *http.Request) (model.Document, bool) {
	id, err := urlID(r, "documentID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid document ID")
		return model.Document{}, false
	}
	doc, err := h.store.GetDocument(id)
	if err != nil {
		respondStoreError(w, err)
		return model.Document{}, false
	}
	user := model.UserFromContext(r.Context())
	if doc.OwnerID != user.ID {
		respondError(w, http.StatusForbidden, "forbidden")
		return model.Document{}, false
	}
	return doc, true
}

func (h *Handler) respondDocument(w http.ResponseWriter, status int, id int64) {
	doc, err := h.store.GetDocument(id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, status, doc)
}
