package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/aretw0/leadflow/internal/cli"
	"github.com/aretw0/leadflow/internal/compiler"
	"github.com/aretw0/leadflow/internal/presentation/tui"
	"github.com/aretw0/leadflow/pkg/adapters/memory"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [flow-file]",
	Short: "Talk to a flow from the terminal",
	Long: `Simulates a lead conversation in the terminal. With a file argument that flow
is loaded directly; otherwise --flow picks one from the flows directory.

Commands: /reiniciar restarts, /estado prints the state, /grafo prints the
Mermaid graph with the visited steps, /sair quits.

With --json each input line is a JSON object ({"text": "..."}, {"outcome": {...}}
or {"reset": true}), a JSON string or plain text, and each turn is written as
one JSON line.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		flowID, _ := cmd.Flags().GetString("flow")
		plain, _ := cmd.Flags().GetBool("plain")
		asJSON, _ := cmd.Flags().GetBool("json")
		conversationID, _ := cmd.Flags().GetString("conversation")

		var opts []cli.Option
		if len(args) == 1 {
			flow, err := compiler.NewParser().ParseFile(args[0])
			if err != nil {
				return err
			}
			flowID = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			opts = append(opts, cli.WithLoader(memory.NewLoader(map[string]*domain.FlowDefinition{flowID: flow})))
		}
		if flowID == "" {
			flowID = cfg.DefaultFlow
		}

		app, err := cli.Bootstrap(cfg, opts...)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		chatOpts := cli.ChatOptions{
			In:             cmd.InOrStdin(),
			Out:            cmd.OutOrStdout(),
			ConversationID: conversationID,
			FlowID:         flowID,
		}
		if asJSON {
			return app.ChatJSON(ctx, chatOpts)
		}

		chatOpts.Rich = !plain && tui.IsTerminal(os.Stdout)
		if chatOpts.Rich {
			tui.PrintBanner(cmd.OutOrStdout())
		}
		return app.Chat(ctx, chatOpts)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("flow", "f", "", "Flow id from the flows directory (default: the configured default flow)")
	chatCmd.Flags().String("conversation", "terminal", "Conversation id")
	chatCmd.Flags().Bool("plain", false, "Disable markdown rendering and colors")
	chatCmd.Flags().Bool("json", false, "Read and write JSON-Lines instead of text")
}
