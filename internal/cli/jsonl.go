package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/aretw0/leadflow/pkg/domain"
)

// JSONInput is one inbound line of the JSON-Lines chat. A bare JSON string or
// plain text is read as Text.
type JSONInput struct {
	Text string `json:"text"`

	// Outcome resumes a pending action.
	Outcome *domain.ActionOutcome `json:"outcome,omitempty"`

	// Reset restarts the conversation before handling Text.
	Reset bool `json:"reset,omitempty"`
}

// JSONOutput is one outbound line of the JSON-Lines chat.
type JSONOutput struct {
	ConversationID string             `json:"conversationId"`
	Result         *domain.TurnResult `json:"result,omitempty"`
	Error          string             `json:"error,omitempty"`
}

// ChatJSON runs the conversation over JSON-Lines for scripts and other
// programs: one JSONInput per line in, one JSONOutput per turn out. Errors are
// reported in-band and the loop keeps going until In is exhausted.
func (a *App) ChatJSON(ctx context.Context, opts ChatOptions) error {
	if opts.ConversationID == "" {
		opts.ConversationID = "terminal"
	}
	enc := json.NewEncoder(opts.Out)
	emit := func(res *domain.TurnResult, err error) error {
		line := JSONOutput{ConversationID: opts.ConversationID, Result: res}
		if err != nil {
			line.Result, line.Error = nil, err.Error()
		}
		return enc.Encode(line)
	}

	if err := a.Manager.Reset(ctx, opts.ConversationID); err != nil {
		return err
	}
	res, err := a.Manager.HandleMessage(ctx, opts.ConversationID, opts.FlowID, "")
	if err := emit(&res, err); err != nil {
		return err
	}

	reader := bufio.NewReader(opts.In)
	for ctx.Err() == nil {
		text, readErr := reader.ReadString('\n')
		if strings.TrimSpace(text) != "" {
			in := parseJSONInput(text)
			if in.Reset {
				if err := a.Manager.Reset(ctx, opts.ConversationID); err != nil {
					return err
				}
			}
			if in.Outcome != nil {
				res, err = a.Manager.Resume(ctx, opts.ConversationID, *in.Outcome)
			} else {
				res, err = a.Manager.HandleMessage(ctx, opts.ConversationID, opts.FlowID, in.Text)
			}
			if err := emit(&res, err); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
	return nil
}

func parseJSONInput(line string) JSONInput {
	line = strings.TrimSpace(line)

	var in JSONInput
	if strings.HasPrefix(line, "{") && json.Unmarshal([]byte(line), &in) == nil {
		return in
	}
	var s string
	if json.Unmarshal([]byte(line), &s) == nil {
		return JSONInput{Text: s}
	}
	return JSONInput{Text: line}
}
