package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/leadflow/internal/compiler"
	"github.com/aretw0/leadflow/internal/logging"
	"github.com/aretw0/leadflow/internal/validator"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/ports"
	"github.com/aretw0/leadflow/pkg/registry"
	"github.com/aretw0/leadflow/pkg/session"
	"github.com/aretw0/leadflow/pkg/state"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed openapi.yaml
var openapiSpec []byte

// MaxBodySize caps request bodies.
const MaxBodySize = 1 << 20

// InternalErrorMessage is the only detail a 500 response carries.
const InternalErrorMessage = "Erro interno do servidor"

// Service is what the HTTP layer needs from the session layer. *session.Manager satisfies it.
type Service interface {
	HandleMessage(ctx context.Context, conversationID, flowID, text string) (domain.TurnResult, error)
	Resume(ctx context.Context, conversationID string, outcome domain.ActionOutcome) (domain.TurnResult, error)
	Get(ctx context.Context, conversationID string) (*domain.Conversation, error)
	Reset(ctx context.Context, conversationID string) error
	List(ctx context.Context) ([]string, error)
	Flows(ctx context.Context) ([]string, error)
	Engine(ctx context.Context, flowID string) (ports.TurnEngine, error)
}

// Catalog lists the registered actions. *registry.Registry satisfies it.
type Catalog interface {
	Definitions() []registry.Definition
	Lookup(name string) (registry.Definition, bool)
}

// Server serves the leadflow REST API.
type Server struct {
	service  Service
	actions  Catalog
	streams  *StreamManager
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	version  string
	spec     *openapi3.T
	known    []string
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithActions exposes the action catalog on /actions and uses it when validating flows.
func WithActions(c Catalog) Option {
	return func(s *Server) {
		s.actions = c
	}
}

// WithGatherer serves metrics from g on /metrics. Defaults to the global registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithKnownVariables declares variables callers inject, for /flows/validate.
func WithKnownVariables(names ...string) Option {
	return func(s *Server) {
		s.known = append(s.known, names...)
	}
}

// LoadSpec parses and validates the embedded OpenAPI document.
func LoadSpec(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi: %w", err)
	}
	return doc, nil
}

// NewHandler creates the HTTP handler over service.
func NewHandler(service Service, opts ...Option) (http.Handler, error) {
	spec, err := LoadSpec(context.Background())
	if err != nil {
		return nil, err
	}
	s := &Server{
		service:  service,
		streams:  NewStreamManager(),
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.NewNop(),
		version:  "dev",
		spec:     spec,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams.logger = s.logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/openapi.yaml", s.getSpec)
	r.Get("/swagger", s.getSwagger)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/actions", s.listActions)

	r.Route("/flows", func(r chi.Router) {
		r.Get("/", s.listFlows)
		r.Post("/validate", s.validateFlow)
		r.Post("/{flowID}/turns", s.processTurn)
	})

	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", s.listConversations)
		r.Get("/{conversationID}", s.getConversation)
		r.Delete("/{conversationID}", s.resetConversation)
		r.Post("/{conversationID}/messages", s.sendMessage)
		r.Post("/{conversationID}/resume", s.resume)
		r.Get("/{conversationID}/events", s.subscribeEvents)
	})

	r.Post("/webhook/mock", s.mockWebhook)
	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="pt-BR">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Leadflow API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

type errorResponse struct {
	Error   string                   `json:"error"`
	Details string                   `json:"details,omitempty"`
	Issues  []domain.ValidationIssue `json:"issues,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func (s *Server) badRequest(w http.ResponseWriter, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	s.writeJSON(w, http.StatusBadRequest, resp)
}

// fail maps err onto a status code. Anything unrecognized becomes a 500
// whose body hides the cause.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var fve *domain.FlowValidationError
	switch {
	case errors.As(err, &fve):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "Flow inválido", Issues: fve.Issues})
	case errors.Is(err, domain.ErrConversationNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "Conversa não encontrada"})
	case errors.Is(err, domain.ErrFlowNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "Flow não encontrado"})
	case errors.Is(err, domain.ErrStepNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "Etapa não encontrada", Details: err.Error()})
	case errors.Is(err, session.ErrNoFlow):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "Nenhum flow ativo encontrado"})
	case session.IsInputError(err):
		s.badRequest(w, "Mensagem inválida", err)
	default:
		s.logger.Error("Request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: InternalErrorMessage})
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodySize))
	return dec.Decode(v)
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "leadflow",
		"version":     strings.TrimSpace(s.version),
		"api_version": apiVersion,
	})
}

func (s *Server) getSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openapiSpec)
}

func (s *Server) getSwagger(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(swaggerHTML))
}

func (s *Server) listActions(w http.ResponseWriter, r *http.Request) {
	defs := []registry.Definition{}
	if s.actions != nil {
		defs = s.actions.Definitions()
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"actions": defs})
}

func (s *Server) listFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := s.service.Flows(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if flows == nil {
		flows = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"flows": flows})
}

type validationReport struct {
	Valid    bool                     `json:"valid"`
	Summary  string                   `json:"summary"`
	Errors   []domain.ValidationIssue `json:"errors"`
	Warnings []domain.ValidationIssue `json:"warnings"`
}

func (s *Server) validateFlow(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize))
	if err != nil {
		s.badRequest(w, "Corpo da requisição inválido", err)
		return
	}
	flow, err := compiler.NewParser().Parse(data)
	if err != nil {
		s.badRequest(w, "Flow malformado", err)
		return
	}

	opts := []validator.Option{validator.WithKnownVariables(s.known...)}
	if s.actions != nil {
		opts = append(opts, validator.WithActions(s.actions))
	}
	res := validator.Validate(flow, opts...)

	report := validationReport{
		Valid:    res.Valid(),
		Summary:  validator.Summary(res),
		Errors:   res.Errors,
		Warnings: res.Warnings,
	}
	if report.Errors == nil {
		report.Errors = []domain.ValidationIssue{}
	}
	if report.Warnings == nil {
		report.Warnings = []domain.ValidationIssue{}
	}
	s.writeJSON(w, http.StatusOK, report)
}

type turnRequest struct {
	Text          string                    `json:"text"`
	CurrentStepID string                    `json:"currentStepId"`
	Variables     map[string]any            `json:"variables"`
	State         *domain.ConversationState `json:"state"`
}

func (s *Server) processTurn(w http.ResponseWriter, r *http.Request) {
	var body turnRequest
	if err := decode(r, &body); err != nil {
		s.badRequest(w, "Corpo da requisição inválido", err)
		return
	}
	text, err := session.SanitizeInput(body.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	engine, err := s.service.Engine(r.Context(), chi.URLParam(r, "flowID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var st domain.ConversationState
	if body.State != nil {
		st = body.State.Clone()
	} else {
		st = state.SetVariables(state.Initialize(body.CurrentStepID), body.Variables)
	}
	if st.Variables == nil {
		st.Variables = make(map[string]any)
	}
	if st.Responses == nil {
		st.Responses = make(map[string]any)
	}

	res, err := engine.ProcessTurn(r.Context(), st, text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	ids, err := s.service.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conversations": ids})
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.service.Get(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, conv)
}

func (s *Server) resetConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Reset(r.Context(), chi.URLParam(r, "conversationID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type messageRequest struct {
	Text   string `json:"text"`
	FlowID string `json:"flowId"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var body messageRequest
	if err := decode(r, &body); err != nil {
		s.badRequest(w, "Corpo da requisição inválido", err)
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		s.badRequest(w, "Parâmetro obrigatório: text", nil)
		return
	}

	id := chi.URLParam(r, "conversationID")
	res, err := s.service.HandleMessage(r.Context(), id, body.FlowID, body.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.broadcast(id, res)
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request) {
	var outcome domain.ActionOutcome
	if err := decode(r, &outcome); err != nil {
		s.badRequest(w, "Corpo da requisição inválido", err)
		return
	}

	id := chi.URLParam(r, "conversationID")
	res, err := s.service.Resume(r.Context(), id, outcome)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.broadcast(id, res)
	s.writeJSON(w, http.StatusOK, res)
}

type webhookRequest struct {
	From string `json:"from"`
	Text string `json:"text"`
}

type button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type webhookReply struct {
	Text    string   `json:"text"`
	Buttons []button `json:"buttons,omitempty"`
}

type webhookDebug struct {
	ConversationID string         `json:"conversationId"`
	CurrentStep    string         `json:"currentStep"`
	Variables      map[string]any `json:"variables"`
	Complete       bool           `json:"complete"`
}

type webhookResponse struct {
	Success  bool         `json:"success"`
	Response webhookReply `json:"response"`
	Debug    webhookDebug `json:"debug"`
}

// mockWebhook simulates the WhatsApp webhook: the sender number is the
// conversation id and new conversations use the default flow.
func (s *Server) mockWebhook(w http.ResponseWriter, r *http.Request) {
	var body webhookRequest
	if err := decode(r, &body); err != nil {
		s.badRequest(w, "Corpo da requisição inválido", err)
		return
	}
	if body.From == "" || body.Text == "" {
		s.badRequest(w, "Parâmetros obrigatórios: from, text", nil)
		return
	}

	s.logger.Info("Mock message received", "from", body.From)
	res, err := s.service.HandleMessage(r.Context(), body.From, "", body.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.broadcast(body.From, res)

	reply := webhookReply{Text: res.Response}
	for _, c := range res.Choices {
		reply.Buttons = append(reply.Buttons, button{ID: c.Value, Title: c.Text})
	}
	s.writeJSON(w, http.StatusOK, webhookResponse{
		Success:  true,
		Response: reply,
		Debug: webhookDebug{
			ConversationID: body.From,
			CurrentStep:    res.NextStepID,
			Variables:      res.Variables,
			Complete:       res.Complete,
		},
	})
}

func (s *Server) broadcast(conversationID string, res domain.TurnResult) {
	data, err := json.Marshal(res)
	if err != nil {
		s.logger.Warn("Turn encode failed", "conversation_id", conversationID, "err", err)
		return
	}
	s.streams.Broadcast(conversationID, string(data))
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logging.NewNop(),
	}
}

// Subscribe registers a buffered channel for conversationID. The returned
// func unsubscribes and closes it.
func (sm *StreamManager) Subscribe(conversationID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[conversationID]; !ok {
		sm.subscribers[conversationID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[conversationID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[conversationID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, conversationID)
			}
		}
	}
}

// Broadcast sends msg to every subscriber of conversationID, dropping it for slow ones.
func (sm *StreamManager) Broadcast(conversationID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[conversationID] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message", "conversation_id", conversationID)
		}
	}
}

func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "conversationID")
	ch, cancel := s.streams.Subscribe(id)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: turn\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
