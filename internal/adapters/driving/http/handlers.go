package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/core/ports/driving"
	"github.com/scarab-search/scarab-core/internal/engine/query"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Health endpoints

// ComponentHealth represents health status of a single component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response with component status.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]ComponentHealth)
	allHealthy := true

	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(r.Context()); err != nil {
			components[name] = ComponentHealth{Status: "unhealthy", Message: err.Error()}
			allHealthy = false
		} else {
			components[name] = ComponentHealth{Status: "healthy"}
		}
	}
	check("postgres", s.db)
	check("redis", s.redisClient)
	check("queue", s.queue)

	components["server"] = ComponentHealth{Status: "healthy"}

	resp := HealthResponse{Status: "healthy", Components: components}
	if !allHealthy {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Index lifecycle

type createIndexRequest struct {
	Name     string                `json:"name"`
	Settings *domain.IndexSettings `json:"settings,omitempty"`
	Mappings *domain.Mappings      `json:"mappings,omitempty"`
}

func (s *Server) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	var req createIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var settings domain.IndexSettings
	if req.Settings != nil {
		settings = *req.Settings
	}
	var mappings domain.Mappings
	if req.Mappings != nil {
		mappings = *req.Mappings
	}

	meta, err := s.indexAdminService.CreateIndex(r.Context(), req.Name, settings, mappings)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

func (s *Server) handleListIndices(w http.ResponseWriter, r *http.Request) {
	metas, err := s.indexAdminService.ListIndices(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": metas, "total": len(metas)})
}

func (s *Server) handleGetIndex(w http.ResponseWriter, r *http.Request) {
	meta, err := s.indexAdminService.GetIndex(r.Context(), r.PathValue("name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.indexAdminService.DeleteIndex(r.Context(), r.PathValue("name")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.IndexSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	meta, err := s.indexAdminService.UpdateSettings(r.Context(), r.PathValue("name"), settings)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleUpdateMappings(w http.ResponseWriter, r *http.Request) {
	var mappings domain.Mappings
	if err := json.NewDecoder(r.Body).Decode(&mappings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	meta, err := s.indexAdminService.UpdateMappings(r.Context(), r.PathValue("name"), mappings)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

type rebuildIndexRequest struct {
	BatchSize                     int   `json:"batchSize,omitempty"`
	Concurrency                   int   `json:"concurrency,omitempty"`
	EnableTermPostingsPersistence *bool `json:"enableTermPostingsPersistence,omitempty"`
}

func (s *Server) handleRebuildIndex(w http.ResponseWriter, r *http.Request) {
	var req rebuildIndexRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	opts := driving.RebuildOptions{
		BatchSize:                     req.BatchSize,
		Concurrency:                   req.Concurrency,
		EnableTermPostingsPersistence: true,
	}
	if req.EnableTermPostingsPersistence != nil {
		opts.EnableTermPostingsPersistence = *req.EnableTermPostingsPersistence
	}

	status, err := s.indexAdminService.RebuildIndex(r.Context(), r.PathValue("name"), opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Documents

type indexDocumentRequest struct {
	ID       string         `json:"id"`
	Document map[string]any `json:"document"`
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var req indexDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.documentService.IndexDocument(r.Context(), r.PathValue("name"), req.ID, req.Document); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID, "result": "created"})
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Accept both a bare document body and a {document: {...}} wrapper.
	document := body
	if wrapped, ok := body["document"].(map[string]any); ok && len(body) == 1 {
		document = wrapped
	}

	id := r.PathValue("id")
	if err := s.documentService.UpdateDocument(r.Context(), r.PathValue("name"), id, document); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "result": "updated"})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.documentService.DeleteDocument(r.Context(), r.PathValue("name"), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "result": "deleted"})
}

type bulkIndexRequest struct {
	Documents []driving.BulkDocument `json:"documents"`
}

func (s *Server) handleBulkIndex(w http.ResponseWriter, r *http.Request) {
	var req bulkIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "documents are required")
		return
	}

	statuses, err := s.documentService.BulkIndex(r.Context(), r.PathValue("name"), req.Documents)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	succeeded := 0
	for _, st := range statuses {
		if st.Success {
			succeeded++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":     statuses,
		"total":     len(statuses),
		"succeeded": succeeded,
		"failed":    len(statuses) - succeeded,
	})
}

type deleteByQueryRequest struct {
	Query map[string]any `json:"query"`
}

func (s *Server) handleDeleteByQuery(w http.ResponseWriter, r *http.Request) {
	var req deleteByQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	deleted, err := s.documentService.DeleteByQuery(r.Context(), r.PathValue("name"), req.Query)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// Search

type searchRequest struct {
	Query     any               `json:"query"`
	Fields    []string          `json:"fields,omitempty"`
	From      int               `json:"from,omitempty"`
	Size      int               `json:"size,omitempty"`
	Sort      string            `json:"sort,omitempty"`
	Filter    map[string]string `json:"filter,omitempty"`
	Highlight bool              `json:"highlight,omitempty"`
	Facets    []string          `json:"facets,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	result, err := s.searchService.Search(r.Context(), r.PathValue("name"), domain.SearchRequest{
		Query:     query.Parse(req.Query, req.Fields),
		Fields:    req.Fields,
		From:      req.From,
		Size:      req.Size,
		Sort:      req.Sort,
		Filter:    req.Filter,
		Highlight: req.Highlight,
		Facets:    req.Facets,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": result,
		"took": time.Since(start).Milliseconds(),
	})
}

type suggestRequest struct {
	Text  string `json:"text"`
	Field string `json:"field,omitempty"`
	Size  int    `json:"size,omitempty"`
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	suggestions, err := s.searchService.Suggest(r.Context(), r.PathValue("name"), req.Text, req.Field, req.Size)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

// Reset

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if s.resetKey == "" {
		writeError(w, http.StatusForbidden, "reset is disabled")
		return
	}
	if r.Header.Get("X-Reset-Key") != s.resetKey {
		writeError(w, http.StatusForbidden, "invalid reset key")
		return
	}

	if err := s.indexAdminService.ResetAll(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Helpers

// writeDomainError translates the engine's typed errors into HTTP
// status codes; only this boundary knows about HTTP.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrIndexClosed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
