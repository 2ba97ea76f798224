package httpadapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vmelnikov/ragbase/internal/core/domain"
	"github.com/vmelnikov/ragbase/internal/core/ports"
	"github.com/vmelnikov/ragbase/internal/observability/metrics"
)

const (
	maxSearchQueryRunes = 1000
	maxTopK             = 20
	defaultTopK         = 5
)

// DocumentService is what the router needs from the ingestion use case.
type DocumentService interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
	Delete(ctx context.Context, id string) error
}

type Router struct {
	service string

	ingestUC  DocumentService
	answers   ports.AnswerService
	enricher  ports.Enricher
	chat      ports.ChatService
	repo      ports.DocumentRepository
	retriever ports.Retriever
	sessions  ports.SessionStore
	ratings   ports.RatingStore
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	service string,
	ingestUC DocumentService,
	answers ports.AnswerService,
	enricher ports.Enricher,
	chat ports.ChatService,
	repo ports.DocumentRepository,
	retriever ports.Retriever,
	sessions ports.SessionStore,
	ratings ports.RatingStore,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		service:   service,
		ingestUC:  ingestUC,
		answers:   answers,
		enricher:  enricher,
		chat:      chat,
		repo:      repo,
		retriever: retriever,
		sessions:  sessions,
		ratings:   ratings,
		metrics:   httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", rt.health)
	mux.HandleFunc("/api/documents", rt.documents)
	mux.HandleFunc("/api/documents/upload", rt.upload)
	mux.HandleFunc("/api/documents/", rt.documentByID)
	mux.HandleFunc("/api/search", rt.search)
	mux.HandleFunc("/api/enrichment/capabilities", rt.enrichmentCapabilities)
	mux.HandleFunc("/api/sessions", rt.sessionsCollection)
	mux.HandleFunc("/api/sessions/", rt.sessionByID)
	mux.HandleFunc("/api/chat", rt.chatTurn)
	mux.HandleFunc("/api/rate", rt.rate)
	mux.HandleFunc("/api/ratings/statistics", rt.ratingStatistics)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload := map[string]any{"status": "ok"}
	if count, err := rt.retriever.Count(r.Context()); err == nil {
		payload["indexed_chunks"] = count
	} else {
		payload["status"] = "degraded"
	}
	writeJSON(w, http.StatusOK, payload)
}

func (rt *Router) documents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rt.listDocuments(w, r)
}

func (rt *Router) upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rt.uploadDocument(w, r)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := rt.ingestUC.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.repo.List(r.Context())
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "total": len(docs)})
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, err := rt.repo.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, mapErrorToHTTPStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		if err := rt.ingestUC.Delete(r.Context(), id); err != nil {
			writeError(w, mapErrorToHTTPStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "document_id": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Query                string `json:"query"`
		TopK                 int    `json:"top_k"`
		EnableAutoEnrichment bool   `json:"enable_auto_enrichment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if utf8.RuneCountInString(query) > maxSearchQueryRunes {
		writeError(w, http.StatusBadRequest, "query is too long")
		return
	}
	topK := req.TopK
	if topK == 0 {
		topK = defaultTopK
	}
	if topK < 1 || topK > maxTopK {
		writeError(w, http.StatusBadRequest, "top_k must be between 1 and 20")
		return
	}
	start := time.Now()
	result, err := rt.answers.Answer(r.Context(), query, topK, req.EnableAutoEnrichment)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordSearch(rt.service, "/api/search", result.Confidence, len(result.Sources), result.IsComplete, time.Since(start))
		if result.AutoEnrichmentApplied {
			rt.metrics.RecordEnrichmentRun(rt.service, true)
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) enrichmentCapabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, rt.enricher.Capabilities())
}

func (rt *Router) sessionsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		// An empty body is fine: the store picks a default name.
		_ = json.NewDecoder(r.Body).Decode(&req)

		session, err := rt.sessions.Create(r.Context(), req.Name)
		if err != nil {
			writeError(w, mapErrorToHTTPStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, session)
	case http.MethodGet:
		summaries, err := rt.sessions.List(r.Context())
		if err != nil {
			writeError(w, mapErrorToHTTPStatus(err), err.Error())
			return
		}
		if summaries == nil {
			summaries = []domain.SessionSummary{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries, "total": len(summaries)})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (rt *Router) sessionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}

	session, err := rt.sessions.Get(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (rt *Router) chatTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	reply, result, err := rt.chat.Chat(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": req.SessionID,
		"message":    reply,
		"result":     result,
	})
}

func (rt *Router) rate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Query    string `json:"query"`
		Answer   string `json:"answer"`
		Rating   int    `json:"rating"`
		Feedback string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	rating := &domain.Rating{
		Query:    req.Query,
		Answer:   req.Answer,
		Rating:   req.Rating,
		Feedback: req.Feedback,
	}
	if err := rt.ratings.Save(r.Context(), rating); err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, rating)
}

func (rt *Router) ratingStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := rt.ratings.Statistics(r.Context())
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
