package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/swaggo/swag"

	"github.com/custodia-labs/faqbot/internal/adapters/driving/http/docs"
	"github.com/custodia-labs/faqbot/internal/core/domain"
)

// RootMessage is reported by GET /
const RootMessage = "Personal FAQ Bot API is running!"

// maxAskBody bounds the size of an /ask request body
const maxAskBody = 1 << 20

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"query must not be empty"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// AskRequest is the body of POST /ask
// @Description Question to answer from the indexed documents
type AskRequest struct {
	Query string `json:"query" example:"What is the capital of Wonderland?"`
}

// AskResponse is a grounded answer with the passages it was built from
// @Description Generated answer and its source passages
type AskResponse struct {
	Answer          string                  `json:"answer" example:"The capital of Wonderland is Elsewhere."`
	SourceDocuments []domain.SourceDocument `json:"source_documents"`
}

// Health endpoints

// handleRoot godoc
// @Summary      Service banner
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       / [get]
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: RootMessage})
}

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Ready once the answer pipeline is loaded and the index store responds
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.state.Ready() {
		writeError(w, http.StatusServiceUnavailable, domain.ErrPipelineNotInitialized.Error())
		return
	}
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "index store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "openapi document unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// Ask endpoint

// handleAsk godoc
// @Summary      Ask a question
// @Description  Answers from the indexed documents only, citing the passages used
// @Tags         FAQ
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      AskRequest  true  "Question"
// @Success      200      {object}  AskResponse
// @Failure      400      {object}  ErrorResponse  "Malformed body or empty query"
// @Failure      401      {object}  ErrorResponse  "Missing or invalid token"
// @Failure      500      {object}  ErrorResponse  "Pipeline failure"
// @Router       /ask [post]
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxAskBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	answer, err := s.state.Answer(r.Context(), query)
	if err != nil {
		switch {
		case domain.IsClientError(err):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrPipelineNotInitialized):
			writeError(w, http.StatusInternalServerError, domain.ErrPipelineNotInitialized.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Answer:          answer.Text,
		SourceDocuments: answer.SourceDocuments(),
	})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
