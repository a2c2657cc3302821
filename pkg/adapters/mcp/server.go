package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/leadflow/internal/compiler"
	"github.com/aretw0/leadflow/internal/logging"
	"github.com/aretw0/leadflow/internal/validator"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Service is what the MCP tools need from the session layer. *session.Manager satisfies it.
type Service interface {
	HandleMessage(ctx context.Context, conversationID, flowID, text string) (domain.TurnResult, error)
	Reset(ctx context.Context, conversationID string) error
	Flows(ctx context.Context) ([]string, error)
}

// ValidateArgs are the arguments of validate_flow.
type ValidateArgs struct {
	Flow string `json:"flow"`
}

// ValidateResponse reports the validator outcome.
type ValidateResponse struct {
	Valid    bool                     `json:"valid" jsonschema_description:"True when the flow has no errors"`
	Summary  string                   `json:"summary"`
	Errors   []domain.ValidationIssue `json:"errors"`
	Warnings []domain.ValidationIssue `json:"warnings"`
}

// MessageArgs are the arguments of process_message.
type MessageArgs struct {
	ConversationID string `json:"conversation_id"`
	FlowID         string `json:"flow_id,omitempty"`
	Text           string `json:"text"`
}

// ResetArgs are the arguments of reset_conversation.
type ResetArgs struct {
	ConversationID string `json:"conversation_id"`
}

// ResetResponse confirms a reset.
type ResetResponse struct {
	Reset bool `json:"reset"`
}

// FlowsResponse lists flow ids.
type FlowsResponse struct {
	Flows []string `json:"flows"`
}

// Server exposes leadflow as an MCP server.
type Server struct {
	service   Service
	actions   validator.ActionCatalog
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithActions makes validate_flow check execute steps against the catalog.
func WithActions(c validator.ActionCatalog) Option {
	return func(s *Server) {
		s.actions = c
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(service Service, version string, opts ...Option) *Server {
	s := &Server{
		service:   service,
		mcpServer: server.NewMCPServer("leadflow-mcp", version),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("validate_flow",
		mcp.WithDescription("Validate a lead qualification flow document (JSON or YAML)."),
		mcp.WithString("flow", mcp.Required(), mcp.Description("The flow document")),
		mcp.WithOutputSchema[ValidateResponse](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("process_message",
		mcp.WithDescription("Send a lead message to a conversation and get the bot turn."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation id, e.g. the WhatsApp number")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Inbound message text")),
		mcp.WithString("flow_id", mcp.Description("Flow for new conversations (optional)")),
		mcp.WithOutputSchema[domain.TurnResult](),
	), mcp.NewStructuredToolHandler(s.handleMessage))

	s.mcpServer.AddTool(mcp.NewTool("list_flows",
		mcp.WithDescription("List the available flow ids."),
		mcp.WithOutputSchema[FlowsResponse](),
	), mcp.NewStructuredToolHandler(s.handleListFlows))

	s.mcpServer.AddTool(mcp.NewTool("reset_conversation",
		mcp.WithDescription("Delete a conversation so the next message starts over."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation id")),
		mcp.WithOutputSchema[ResetResponse](),
	), mcp.NewStructuredToolHandler(s.handleReset))
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, args ValidateArgs) (ValidateResponse, error) {
	flow, err := compiler.NewParser().Parse([]byte(args.Flow))
	if err != nil {
		return ValidateResponse{}, fmt.Errorf("parse failed: %w", err)
	}

	var opts []validator.Option
	if s.actions != nil {
		opts = append(opts, validator.WithActions(s.actions))
	}
	res := validator.Validate(flow, opts...)

	out := ValidateResponse{
		Valid:    res.Valid(),
		Summary:  validator.Summary(res),
		Errors:   res.Errors,
		Warnings: res.Warnings,
	}
	if out.Errors == nil {
		out.Errors = []domain.ValidationIssue{}
	}
	if out.Warnings == nil {
		out.Warnings = []domain.ValidationIssue{}
	}
	return out, nil
}

func (s *Server) handleMessage(ctx context.Context, request mcp.CallToolRequest, args MessageArgs) (domain.TurnResult, error) {
	if args.ConversationID == "" {
		return domain.TurnResult{}, fmt.Errorf("conversation_id is required")
	}
	res, err := s.service.HandleMessage(ctx, args.ConversationID, args.FlowID, args.Text)
	if err != nil {
		s.logger.Warn("MCP process_message failed", "conversation_id", args.ConversationID, "err", err)
		return domain.TurnResult{}, fmt.Errorf("process failed: %w", err)
	}
	return res, nil
}

func (s *Server) handleReset(ctx context.Context, request mcp.CallToolRequest, args ResetArgs) (ResetResponse, error) {
	if args.ConversationID == "" {
		return ResetResponse{}, fmt.Errorf("conversation_id is required")
	}
	if err := s.service.Reset(ctx, args.ConversationID); err != nil {
		return ResetResponse{}, fmt.Errorf("reset failed: %w", err)
	}
	return ResetResponse{Reset: true}, nil
}

func (s *Server) handleListFlows(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (FlowsResponse, error) {
	flows, err := s.service.Flows(ctx)
	if err != nil {
		return FlowsResponse{}, err
	}
	if flows == nil {
		flows = []string{}
	}
	return FlowsResponse{Flows: flows}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("leadflow://flows", "Available Flows",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		flows, err := s.handleListFlows(ctx, mcp.CallToolRequest{}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list flows: %w", err)
		}
		data, err := json.Marshal(flows)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "leadflow://flows",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
