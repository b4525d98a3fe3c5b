package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/sergi/go-diff/diffmatchpatch"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/aether/internal/host"
	"github.com/Sumatoshi-tech/aether/pkg/node"
)

const (
	yamlIndent     = 2
	maxTokenInTree = 40
)

// unitReport is the json/yaml view of one unit, shared by the CLI and the server.
type unitReport struct {
	ID       string         `json:"id,omitempty"       yaml:"id,omitempty"`
	File     string         `json:"file"               yaml:"file"`
	Language string         `json:"language,omitempty" yaml:"language,omitempty"`
	Rules    []string       `json:"rules"              yaml:"rules"`
	Applied  map[string]int `json:"applied,omitempty"  yaml:"applied,omitempty"`
	Output   string         `json:"output,omitempty"   yaml:"output,omitempty"`
	Tree     *node.Node     `json:"tree,omitempty"     yaml:"tree,omitempty"`
	Error    string         `json:"error,omitempty"    yaml:"error,omitempty"`
}

func newUnitReport(result host.Result, withTree bool) unitReport {
	report := unitReport{
		ID:       result.ID,
		File:     result.Name,
		Language: result.Language,
		Rules:    result.Stats.Rules,
		Applied:  result.Stats.Applied,
	}

	if report.Rules == nil {
		report.Rules = []string{}
	}

	if result.Err != nil {
		report.Error = result.Err.Error()

		return report
	}

	report.Output = string(result.Output)

	if withTree {
		report.Tree = result.Tree
	}

	return report
}

func writeResults(out io.Writer, format string, results []host.Result) error {
	switch format {
	case formatJSON:
		return writeJSONReports(out, results)
	case formatYAML:
		return writeYAMLReports(out, results)
	case formatTree:
		return writeTrees(out, results)
	default:
		return writeSources(out, results)
	}
}

func writeJSONReports(out io.Writer, results []host.Result) error {
	reports := make([]unitReport, len(results))
	for idx, result := range results {
		reports[idx] = newUnitReport(result, true)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(reports)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

func writeYAMLReports(out io.Writer, results []host.Result) error {
	reports := make([]unitReport, len(results))
	for idx, result := range results {
		reports[idx] = newUnitReport(result, true)
	}

	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(yamlIndent)

	err := encoder.Encode(reports)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	err = encoder.Close()
	if err != nil {
		return fmt.Errorf("close yaml encoder: %w", err)
	}

	return nil
}

func writeSources(out io.Writer, results []host.Result) error {
	printed := 0

	for _, result := range results {
		if result.Err != nil {
			continue
		}

		if len(results) > 1 {
			if printed > 0 {
				fmt.Fprintln(out)
			}

			fmt.Fprintf(out, "// ==> %s <==\n", result.Name)
		}

		_, err := out.Write(result.Output)
		if err != nil {
			return fmt.Errorf("write output: %w", err)
		}

		printed++
	}

	return nil
}

func writeTrees(out io.Writer, results []host.Result) error {
	for _, result := range results {
		if result.Err != nil {
			continue
		}

		_, err := fmt.Fprintln(out, renderTree(result.Name, result.Tree))
		if err != nil {
			return fmt.Errorf("write tree: %w", err)
		}
	}

	return nil
}

type treeFrame struct {
	node  *node.Node
	depth int
}

// renderTree draws root as an indented list under a title item.
func renderTree(title string, root *node.Node) string {
	writer := list.NewWriter()
	writer.SetStyle(list.StyleConnectedLight)
	writer.AppendItem(title)

	level := 0
	stack := []treeFrame{{node: root, depth: 1}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if frame.node == nil {
			continue
		}

		for ; level < frame.depth; level++ {
			writer.Indent()
		}

		for ; level > frame.depth; level-- {
			writer.UnIndent()
		}

		writer.AppendItem(describeNode(frame.node))

		for idx := len(frame.node.Children) - 1; idx >= 0; idx-- {
			stack = append(stack, treeFrame{node: frame.node.Children[idx], depth: frame.depth + 1})
		}
	}

	return writer.Render()
}

func describeNode(target *node.Node) string {
	var buf strings.Builder

	buf.WriteString(string(target.Type))

	if target.IsLeaf() && target.Token != "" && target.Token != string(target.Type) {
		token := target.Token
		if len(token) > maxTokenInTree {
			token = token[:maxTokenInTree] + "..."
		}

		fmt.Fprintf(&buf, " %q", token)
	}

	if target.Pos != nil {
		fmt.Fprintf(&buf, " [%d:%d]", target.Pos.StartLine, target.Pos.StartCol)
	} else {
		buf.WriteString(" [+]")
	}

	for _, key := range slices.Sorted(maps.Keys(target.Props)) {
		fmt.Fprintf(&buf, " %s=%s", key, target.Props[key])
	}

	return buf.String()
}

func writeDiffs(out io.Writer, results []host.Result) error {
	removed := color.New(color.FgRed)
	added := color.New(color.FgGreen)
	header := color.New(color.Bold)

	for _, result := range results {
		if result.Err != nil {
			continue
		}

		diffs := lineDiff(string(result.Source), string(result.Output))
		if !slices.ContainsFunc(diffs, func(diff diffmatchpatch.Diff) bool { return diff.Type != diffmatchpatch.DiffEqual }) {
			continue
		}

		header.Fprintf(out, "--- a/%s\n+++ b/%s\n", result.Name, result.Name)

		for _, diff := range diffs {
			for _, line := range splitLines(diff.Text) {
				switch diff.Type {
				case diffmatchpatch.DiffDelete:
					removed.Fprint(out, "-"+line)
				case diffmatchpatch.DiffInsert:
					added.Fprint(out, "+"+line)
				case diffmatchpatch.DiffEqual:
					fmt.Fprint(out, " "+line)
				}
			}
		}
	}

	return nil
}

// lineDiff diffs two texts line by line.
func lineDiff(before, after string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToRunes(before, after)
	diffs := dmp.DiffMainRunes(src, dst, false)

	return dmp.DiffCharsToLines(diffs, lines)
}

// splitLines splits text after each newline; a final unterminated line gets one.
func splitLines(text string) []string {
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	} else {
		lines[len(lines)-1] += "\n"
	}

	return lines
}
