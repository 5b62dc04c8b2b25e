package http

import (
	"net/http"

	"github.com/Strob0t/DevPlane/internal/domain"
	"github.com/Strob0t/DevPlane/internal/service"
)

// FileTree lists the workspace tree under the optional dir query param.
func (h *Handlers) FileTree(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Files.Tree(r.Context(), urlParam(r, "id"), r.URL.Query().Get("dir"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// ReadFile returns file content plus its version token, both in the body
// and as an ETag header.
func (h *Handlers) ReadFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeErrorCode(w, r, http.StatusBadRequest, domain.CodeInvalidInput, "path query parameter is required")
		return
	}
	fc, err := h.Files.Read(r.Context(), urlParam(r, "id"), path)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("ETag", fc.ETag)
	writeJSON(w, http.StatusOK, fc)
}

type writeFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	ETag    string `json:"etag,omitempty"`
}

// WriteFile stores content at a path. The version token comes from the
// If-Match header or the body's etag field; header wins.
func (h *Handlers) WriteFile(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[writeFileRequest](w, r)
	if !ok {
		return
	}
	if req.Path == "" {
		writeErrorCode(w, r, http.StatusBadRequest, domain.CodeInvalidInput, "path is required")
		return
	}
	etag := req.ETag
	if m := r.Header.Get("If-Match"); m != "" {
		etag = m
	}

	next, created, err := h.Files.Write(r.Context(), urlParam(r, "id"), req.Path, req.Content, etag)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	w.Header().Set("ETag", next)
	writeJSON(w, status, map[string]any{"path": req.Path, "etag": next, "created": created})
}

// DeleteFile removes a file, honoring the same token check as WriteFile.
func (h *Handlers) DeleteFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeErrorCode(w, r, http.StatusBadRequest, domain.CodeInvalidInput, "path query parameter is required")
		return
	}
	etag := r.Header.Get("If-Match")
	if etag == "" {
		etag = r.URL.Query().Get("etag")
	}
	if err := h.Files.Delete(r.Context(), urlParam(r, "id"), path, etag); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type batchRequest struct {
	Ops []service.BatchOp `json:"ops"`
}

// BatchFiles applies a sequence of write and delete ops. Items succeed or
// fail independently; the response always carries one result per op.
func (h *Handlers) BatchFiles(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[batchRequest](w, r)
	if !ok {
		return
	}
	if len(req.Ops) == 0 {
		writeErrorCode(w, r, http.StatusBadRequest, domain.CodeInvalidInput, "ops must not be empty")
		return
	}
	results := h.Files.Batch(r.Context(), urlParam(r, "id"), req.Ops)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// SearchFiles scans workspace text files for lines containing the query.
func (h *Handlers) SearchFiles(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[searchRequest](w, r)
	if !ok {
		return
	}
	matches, err := h.Files.Search(r.Context(), urlParam(r, "id"), req.Query, req.Limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}
