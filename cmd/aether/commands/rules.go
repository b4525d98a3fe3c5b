package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/aether/pkg/aether"
)

func newRulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List registered rules in application order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeRules(cmd.OutOrStdout())
		},
	}
}

func writeRules(out io.Writer) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	tbl.AppendHeader(table.Row{"#", "Rule", "Node kinds", "Description"})

	rules := aether.Rules()

	for idx, rule := range rules {
		kinds := make([]string, len(rule.Kinds))
		for kidx, kind := range rule.Kinds {
			kinds[kidx] = string(kind)
		}

		tbl.AppendRow(table.Row{idx + 1, rule.Name, strings.Join(kinds, ", "), rule.Description})
	}

	tbl.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d rules", len(rules))})

	_, err := fmt.Fprintln(out, tbl.Render())
	if err != nil {
		return fmt.Errorf("write rules: %w", err)
	}

	return nil
}
