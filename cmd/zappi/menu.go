package main

import (
	"fmt"

	"github.com/pedroavv1914/zappi-chatbot/internal/conversation"
	"github.com/pedroavv1914/zappi-chatbot/internal/menu"
	"github.com/spf13/cobra"
)

func newMenuCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Catalog commands",
	}

	cmd.AddCommand(newMenuCheckCmd())
	return cmd
}

func newMenuCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <dir>",
		Short: "Validate an establishment's menu.json or menu.yaml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenuCheck(cmd, args[0])
		},
	}
}

func runMenuCheck(cmd *cobra.Command, dir string) error {
	out := cmd.OutOrStdout()

	cat, err := menu.Load(dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Catalog OK: %d pizzas, %d drinks\n", len(cat.Pizzas), len(cat.Drinks))
	for _, it := range cat.Items() {
		fmt.Fprintf(out, "  %3d  %-6s %-30s %s\n", it.ID, it.Category, it.Name, conversation.FormatPrice(it.Price))
	}
	return nil
}
