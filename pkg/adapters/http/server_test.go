package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/leadflow/internal/testutils"
	"github.com/aretw0/leadflow/pkg/actions"
	leadhttp "github.com/aretw0/leadflow/pkg/adapters/http"
	"github.com/aretw0/leadflow/pkg/adapters/memory"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/ports"
	"github.com/aretw0/leadflow/pkg/registry"
	"github.com/aretw0/leadflow/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	loader := memory.NewLoader(map[string]*domain.FlowDefinition{
		"saude":    testutils.HealthBasic(),
		"greeting": testutils.Greeting(),
		"auto":     testutils.AutoChain("enviar_crm"),
	})
	reg := registry.NewRegistry()
	actions.RegisterDefaults(reg, actions.Deps{})

	mgr := session.NewManager(memory.NewStore(), loader, session.WithDefaultFlow("greeting"))
	handler, err := leadhttp.NewHandler(mgr,
		leadhttp.WithActions(reg),
		leadhttp.WithGatherer(prometheus.NewRegistry()),
		leadhttp.WithVersion("1.2.3\n"),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent && strings.Contains(resp.Header.Get("Content-Type"), "json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestLoadSpec(t *testing.T) {
	doc, err := leadhttp.LoadSpec(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, doc.Paths.Find("/conversations/{conversationID}/messages"))
}

func TestServer_Meta(t *testing.T) {
	srv := newServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	_, body = do(t, http.MethodGet, srv.URL+"/info", "")
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, "1.0.0", body["api_version"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/openapi.yaml", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))

	resp, _ = do(t, http.MethodGet, srv.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = do(t, http.MethodGet, srv.URL+"/actions", "")
	list := body["actions"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, actions.CalculateScore, list[0].(map[string]any)["name"])

	_, body = do(t, http.MethodGet, srv.URL+"/flows", "")
	assert.Equal(t, []any{"auto", "greeting", "saude"}, body["flows"])
}

func TestServer_ValidateFlow(t *testing.T) {
	srv := newServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/flows/validate", testutils.HealthBasicJSON)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])
	assert.Empty(t, body["errors"])

	circular := `{"inicio":"a","passos":[
		{"id":"a","tipo":"mensagem","mensagem":"oi","proxima":"b"},
		{"id":"b","tipo":"mensagem","mensagem":"de novo","proxima":"a"}]}`
	resp, body = do(t, http.MethodPost, srv.URL+"/flows/validate", circular)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["valid"])
	errs := body["errors"].([]any)
	require.NotEmpty(t, errs)
	assert.Equal(t, "CYCLE_DETECTED", errs[0].(map[string]any)["code"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/flows/validate", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_StatelessTurns(t *testing.T) {
	srv := newServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/flows/saude/turns", `{"text":"oi"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "perfil", body["nextStepId"])
	assert.Len(t, body["choices"], 4)

	resp, body = do(t, http.MethodPost, srv.URL+"/flows/saude/turns", `{"text":"casal","currentStepId":"perfil"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "idade", body["nextStepId"])
	assert.Equal(t, "casal", body["variables"].(map[string]any)["perfil"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/flows/nenhum/turns", `{"text":"oi"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/flows/saude/turns", `{"text":"oi","currentStepId":"fantasma"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/flows/saude/turns", `{`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Conversations(t *testing.T) {
	srv := newServer(t)
	base := srv.URL + "/conversations/c1"

	resp, body := do(t, http.MethodPost, base+"/messages", `{"text":"oi","flowId":"greeting"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pergunta", body["nextStepId"])

	resp, body = do(t, http.MethodPost, base+"/messages", `{"text":"b"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["complete"])

	resp, body = do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "greeting", body["flowId"])

	_, body = do(t, http.MethodGet, srv.URL+"/conversations", "")
	assert.Equal(t, []any{"c1"}, body["conversations"])

	resp, _ = do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Conversa não encontrada", body["error"])

	resp, _ = do(t, http.MethodPost, base+"/messages", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Resume(t *testing.T) {
	srv := newServer(t)
	base := srv.URL + "/conversations/c2"

	_, body := do(t, http.MethodPost, base+"/messages", `{"text":"oi","flowId":"auto"}`)
	action := body["action"].(map[string]any)
	assert.Equal(t, "enviar_crm", action["name"])

	resp, body := do(t, http.MethodPost, base+"/resume", `{"message":"Dados enviados.","variables":{"crm":"ok"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Dados enviados.\n\nContinuar?", body["response"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/conversations/nada/resume", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_MockWebhook(t *testing.T) {
	srv := newServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/webhook/mock", `{"from":"5511988887777","text":"oi"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	reply := body["response"].(map[string]any)
	assert.Equal(t, "Olá!\n\nA ou B?", reply["text"])
	assert.Equal(t, []any{
		map[string]any{"id": "a", "title": "A"},
		map[string]any{"id": "b", "title": "B"},
	}, reply["buttons"])
	assert.Equal(t, "pergunta", body["debug"].(map[string]any)["currentStep"])

	resp, body = do(t, http.MethodPost, srv.URL+"/webhook/mock", `{"from":"5511988887777"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Parâmetros obrigatórios: from, text", body["error"])
}

type failingService struct {
	leadhttp.Service
}

func (failingService) HandleMessage(ctx context.Context, id, flowID, text string) (domain.TurnResult, error) {
	return domain.TurnResult{}, errors.New("connection refused: db.internal:5432")
}

func (failingService) Engine(ctx context.Context, flowID string) (ports.TurnEngine, error) {
	return nil, &domain.FlowValidationError{Issues: []domain.ValidationIssue{{Code: "CYCLE_DETECTED", StepID: "a"}}}
}

func TestServer_ErrorMapping(t *testing.T) {
	handler, err := leadhttp.NewHandler(failingService{})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, body := do(t, http.MethodPost, srv.URL+"/conversations/x/messages", `{"text":"oi"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, leadhttp.InternalErrorMessage, body["error"])
	assert.NotContains(t, body, "details")

	resp, body = do(t, http.MethodPost, srv.URL+"/flows/x/turns", `{"text":"oi"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Len(t, body["issues"], 1)
}

func TestServer_Events(t *testing.T) {
	srv := newServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/conversations/c3/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	do(t, http.MethodPost, srv.URL+"/conversations/c3/messages", `{"text":"oi","flowId":"greeting"}`)

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") {
			break
		}
	}
	assert.Contains(t, line, `"nextStepId":"pergunta"`)
}
