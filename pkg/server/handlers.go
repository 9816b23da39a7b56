package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zen-systems/modelgate/pkg/adapter"
	"github.com/zen-systems/modelgate/pkg/config"
	"github.com/zen-systems/modelgate/pkg/router"
	"github.com/zen-systems/modelgate/pkg/tools"
	"github.com/zen-systems/modelgate/pkg/validate"
)

const maxBodyBytes = 4 << 20

type messageBody struct {
	Role    adapter.Role `json:"role" validate:"required,oneof=system user assistant"`
	Content string       `json:"content" validate:"required"`
}

type routeBody struct {
	TaskID           string         `json:"task_id,omitempty"`
	Prompt           string         `json:"prompt,omitempty" validate:"required_without=Messages"`
	Messages         []messageBody  `json:"messages,omitempty" validate:"required_without=Prompt,dive"`
	Shape            validate.Shape `json:"shape,omitempty" validate:"omitempty,oneof=text json mermaid"`
	Schema           string         `json:"schema,omitempty"`
	RequireJSON      bool           `json:"require_json,omitempty"`
	Mode             config.Mode    `json:"mode,omitempty" validate:"omitempty,oneof=quality balanced cheap"`
	TokensInEstimate int            `json:"tokens_in_estimate,omitempty" validate:"gte=0"`
	MaxTokens        int            `json:"max_tokens,omitempty" validate:"gte=0"`
	Temperature      *float64       `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
}

func (b routeBody) request() router.Request {
	req := router.Request{
		TaskID:           b.TaskID,
		Prompt:           b.Prompt,
		Shape:            b.Shape,
		SchemaName:       b.Schema,
		RequireJSON:      b.RequireJSON,
		Mode:             b.Mode,
		TokensInEstimate: b.TokensInEstimate,
		MaxTokens:        b.MaxTokens,
		Temperature:      b.Temperature,
	}
	for _, m := range b.Messages {
		req.Messages = append(req.Messages, adapter.Message{Role: m.Role, Content: m.Content})
	}
	return req
}

type classifyBody struct {
	Prompt string `json:"prompt" validate:"required"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var body routeBody
	if !s.decode(w, r, &body) {
		return
	}
	result, err := s.router.Route(r.Context(), body.request())
	if err != nil {
		s.routeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	args, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	call, err := tools.Parse(name, json.RawMessage(args))
	if err != nil {
		if errors.Is(err, tools.ErrUnknownTool) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := tools.Run(r.Context(), s.router, call)
	if err != nil {
		s.routeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var body classifyBody
	if !s.decode(w, r, &body) {
		return
	}
	task, keyword := router.ClassifyWithKeyword(body.Prompt)
	writeJSON(w, http.StatusOK, map[string]string{"task_id": task, "keyword": keyword})
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	policy := s.router.Policy()
	writeJSON(w, http.StatusOK, map[string]any{
		"version": policy.Version(),
		"routes":  policy.Routes(),
	})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.Telemetry().Analytics())
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"capacity": s.router.Telemetry().Capacity(),
		"entries":  s.router.Telemetry().Entries(),
	})
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.logger.Warn("failed to parse request body",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "request validation failed: "+err.Error())
		return false
	}
	return true
}

func (s *Server) routeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, router.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case config.IsConfigError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("route failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
