package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/leadflow/internal/presentation/graph"
	"github.com/aretw0/leadflow/internal/presentation/tui"
	"github.com/aretw0/leadflow/pkg/domain"
)

// Chat commands typed at the prompt.
const (
	CmdQuit    = "/sair"
	CmdRestart = "/reiniciar"
	CmdState   = "/estado"
	CmdGraph   = "/grafo"
)

// ChatOptions configures a terminal conversation.
type ChatOptions struct {
	In  io.Reader
	Out io.Writer

	// Rich enables markdown rendering and colors.
	Rich bool

	ConversationID string
	FlowID         string
}

// Chat simulates a lead talking to the bot from a terminal. The flow starts
// right away; each line read from In is one inbound message. Pending actions
// ask for their result on the next line.
func (a *App) Chat(ctx context.Context, opts ChatOptions) error {
	out := tui.NewRenderer(opts.Out, opts.Rich)
	if opts.ConversationID == "" {
		opts.ConversationID = "terminal"
	}

	// A leftover conversation from a persistent store would resume mid-flow.
	if err := a.Manager.Reset(ctx, opts.ConversationID); err != nil {
		return err
	}

	res, err := a.Manager.HandleMessage(ctx, opts.ConversationID, opts.FlowID, "")
	if err != nil {
		return err
	}
	out.Turn(res)

	scanner := bufio.NewScanner(opts.In)
	for {
		fmt.Fprint(opts.Out, prompt(res))
		if !scanner.Scan() {
			fmt.Fprintln(opts.Out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case CmdQuit, "exit", "quit":
			out.System("até logo")
			return nil
		case CmdRestart:
			if err := a.Manager.Reset(ctx, opts.ConversationID); err != nil {
				return err
			}
			res, line = domain.TurnResult{}, ""
		case CmdState:
			a.printState(ctx, opts)
			continue
		case CmdGraph:
			a.printGraph(ctx, opts)
			continue
		}

		if res.Action != nil {
			res, err = a.Manager.Resume(ctx, opts.ConversationID, domain.ActionOutcome{Message: line})
		} else {
			res, err = a.Manager.HandleMessage(ctx, opts.ConversationID, opts.FlowID, line)
		}
		if err != nil {
			out.Error(err)
			continue
		}
		out.Turn(res)
	}
}

func prompt(res domain.TurnResult) string {
	if res.Action != nil {
		return res.Action.Name + "> "
	}
	return "> "
}

func (a *App) printState(ctx context.Context, opts ChatOptions) {
	conv, err := a.Manager.Get(ctx, opts.ConversationID)
	if err != nil {
		fmt.Fprintf(opts.Out, "erro: %v\n", err)
		return
	}
	data, _ := json.MarshalIndent(conv.State, "", "  ")
	fmt.Fprintln(opts.Out, string(data))
}

func (a *App) printGraph(ctx context.Context, opts ChatOptions) {
	conv, err := a.Manager.Get(ctx, opts.ConversationID)
	if err != nil {
		fmt.Fprintf(opts.Out, "erro: %v\n", err)
		return
	}
	flow, err := a.Loader.GetFlow(ctx, conv.FlowID)
	if err != nil {
		fmt.Fprintf(opts.Out, "erro: %v\n", err)
		return
	}
	fmt.Fprint(opts.Out, graph.GenerateMermaid(flow, graph.OverlayFromState(conv.State)))
}
