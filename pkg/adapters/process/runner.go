// Package process runs flow actions as local commands.
//
// The command receives the action request as JSON on stdin and each param as
// a LEADFLOW_PARAM_<NAME> environment variable. Stdout holding a JSON object
// with "message" and/or "variables" becomes the action outcome; any other
// output becomes the message. A non-zero exit is an action failure.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/registry"
)

// EnvPrefix prefixes the param environment variables.
const EnvPrefix = "LEADFLOW_PARAM_"

// Runner executes allow-listed commands.
type Runner struct {
	actions map[string]ActionConfig
	baseDir string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithActions populates the allow-list from a loaded config.
func WithActions(actions map[string]ActionConfig) RunnerOption {
	return func(r *Runner) {
		for name, a := range actions {
			a.Name = name
			r.actions[name] = a
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{actions: make(map[string]ActionConfig)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add allow-lists a command under name.
func (r *Runner) Add(name, command string, args ...string) {
	r.actions[name] = ActionConfig{Name: name, Command: command, Args: args}
}

// Register adds every allow-listed command to reg as an action.
func (r *Runner) Register(reg *registry.Registry) {
	for name, a := range r.actions {
		opts := []registry.RegisterOption{registry.WithOutputs(a.Outputs...)}
		if a.Description != "" {
			opts = append(opts, registry.WithDescription(a.Description))
		}
		reg.Register(name, r.handler(name), opts...)
	}
}

func (r *Runner) handler(name string) registry.HandlerFunc {
	return func(ctx context.Context, req domain.ActionRequest) (domain.ActionOutcome, error) {
		return r.Perform(ctx, name, req)
	}
}

// Perform runs the command registered under name.
func (r *Runner) Perform(ctx context.Context, name string, req domain.ActionRequest) (domain.ActionOutcome, error) {
	a, ok := r.actions[name]
	if !ok {
		return domain.ActionOutcome{}, fmt.Errorf("process action not registered: %s", name)
	}

	input, err := json.Marshal(request{
		Action:  req.Name,
		StepID:  req.StepID,
		Params:  req.Params,
		Context: req.Context,
	})
	if err != nil {
		return domain.ActionOutcome{}, fmt.Errorf("failed to encode request: %w", err)
	}

	// Params travel as environment variables, never as flags, so they cannot inject arguments.
	cmd := exec.CommandContext(ctx, a.Command, a.Args...)
	cmd.Dir = r.baseDir
	cmd.Env = cmd.Environ()
	for k, v := range a.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	for k, v := range req.Params {
		cmd.Env = append(cmd.Env, EnvPrefix+strings.ToUpper(k)+"="+envValue(v))
	}
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return domain.ActionOutcome{}, fmt.Errorf("action %s failed: %w. Stderr: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return parseOutput(stdout.String()), nil
}

type request struct {
	Action  string                     `json:"action"`
	StepID  string                     `json:"stepId"`
	Params  map[string]any             `json:"params"`
	Context domain.ConversationContext `json:"context"`
}

func envValue(v any) string {
	switch v.(type) {
	case string, int, int64, float64, bool:
		return fmt.Sprintf("%v", v)
	case nil:
		return ""
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}

func parseOutput(out string) domain.ActionOutcome {
	trimmed := strings.TrimSpace(out)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		var outcome domain.ActionOutcome
		if err := json.Unmarshal([]byte(trimmed), &outcome); err == nil && (outcome.Message != "" || outcome.Variables != nil) {
			return outcome
		}
	}
	return domain.ActionOutcome{Message: trimmed}
}
