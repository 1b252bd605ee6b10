package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tasklint/internal/docservice"
	"github.com/starford/tasklint/internal/index"
)

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

// docPath extracts the document path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. projects%2Fhome.org).
func docPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func ifMatch(r *http.Request) string {
	// Strip surrounding quotes if present (standard ETag format).
	return strings.Trim(r.Header.Get("If-Match"), `"`)
}

func boolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List indexed documents
//	@Tags			documents
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			issues	query		bool	false	"Only documents with findings"
//	@Param			prefix	query		string	false	"Directory prefix"
//	@Success		200		{object}	DocumentListResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	filter := index.ListFilter{WithIssues: boolParam(r, "issues"), Prefix: q.Get("prefix")}

	docs, total, err := h.svc.List(r.Context(), limit, offset, filter)
	if err != nil {
		writeServiceError(w, "list documents", "", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Total: total})
}

// GetDocument handles GET /api/documents/*.
//
//	@Summary		Parse and validate a single document
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	DocumentDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	doc, err := h.svc.Check(r.Context(), path)
	if err != nil {
		writeServiceError(w, "check document", path, err)
		return
	}
	w.Header().Set("ETag", `"`+doc.Checksum+`"`)
	writeJSON(w, http.StatusOK, doc)
}

// FixDocument handles POST /api/fix/*.
//
//	@Summary		Repair a single document
//	@Tags			fix
//	@Produce		json
//	@Param			path		path		string	true	"Document path"
//	@Param			preview		query		bool	false	"Compute edits without writing"
//	@Param			If-Match	header		string	false	"SHA-256 checksum for optimistic concurrency"
//	@Success		200			{object}	report.Outcome
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/fix/{path} [post]
func (h *Handler) FixDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	o, err := h.svc.Fix(r.Context(), path, docservice.FixOptions{
		Preview: boolParam(r, "preview"),
		IfMatch: ifMatch(r),
	})
	if err != nil {
		writeServiceError(w, "fix document", path, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// FixAll handles POST /api/fix.
//
//	@Summary		Repair every document under a directory
//	@Tags			fix
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FixAllRequest	false	"Batch options"
//	@Success		200		{object}	report.Report
//	@Security		BearerAuth
//	@Router			/fix [post]
func (h *Handler) FixAll(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req FixAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if boolParam(r, "preview") {
		req.Preview = true
	}
	rep, err := h.svc.FixAll(r.Context(), req.Dir, req.Preview)
	if err != nil {
		writeServiceError(w, "fix all", req.Dir, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Report handles GET /api/report.
//
//	@Summary		Findings across the whole tree
//	@Tags			report
//	@Produce		json
//	@Success		200	{object}	report.Report
//	@Security		BearerAuth
//	@Router			/report [get]
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Report(r.Context())
	if err != nil {
		writeServiceError(w, "report", "", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across headings
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, "search", "", err)
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Headings handles GET /api/headings.
//
//	@Summary		List indexed headings
//	@Tags			headings
//	@Produce		json
//	@Param			state	query		string	false	"State keyword"
//	@Param			tag		query		string	false	"Tag"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	HeadingsResponse
//	@Security		BearerAuth
//	@Router			/headings [get]
func (h *Handler) Headings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	hs, err := h.svc.Headings(r.Context(), index.HeadingFilter{State: q.Get("state"), Tag: q.Get("tag"), Limit: limit})
	if err != nil {
		writeServiceError(w, "headings", "", err)
		return
	}
	if hs == nil {
		hs = []index.HeadingRow{}
	}
	writeJSON(w, http.StatusOK, HeadingsResponse{Headings: hs})
}

// GenerateID handles POST /api/ids.
//
//	@Summary		Mint a new unused TASK_ID
//	@Tags			ids
//	@Produce		json
//	@Success		200	{object}	GenerateIDResponse
//	@Security		BearerAuth
//	@Router			/ids [post]
func (h *Handler) GenerateID(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.GenerateID(r.Context())
	if err != nil {
		writeServiceError(w, "generate id", "", err)
		return
	}
	writeJSON(w, http.StatusOK, GenerateIDResponse{ID: id})
}

// EnsureID handles POST /api/ids/*.
//
//	@Summary		Assign a TASK_ID to a heading if it has none
//	@Tags			ids
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string			true	"Document path"
//	@Param			If-Match	header		string			false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		EnsureIDRequest	true	"Heading index (0-based)"
//	@Success		200			{object}	docservice.IDResult
//	@Failure		404			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ids/{path} [post]
func (h *Handler) EnsureID(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req EnsureIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.svc.EnsureID(r.Context(), path, req.Heading, ifMatch(r))
	if err != nil {
		writeServiceError(w, "ensure id", path, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Rules handles GET /api/rules.
//
//	@Summary		Active rule configuration
//	@Tags			rules
//	@Produce		json
//	@Success		200	{object}	rules.Config
//	@Security		BearerAuth
//	@Router			/rules [get]
func (h *Handler) Rules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Rules())
}
