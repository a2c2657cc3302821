package main

import (
	"fmt"

	"github.com/aretw0/leadflow/internal/compiler"
	"github.com/aretw0/leadflow/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <flow-file>",
	Short: "Export the flow graph visualization",
	Long:  `Parses a flow document and outputs a Mermaid diagram (graph TD) of its steps.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, err := compiler.NewParser().ParseFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(flow, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
