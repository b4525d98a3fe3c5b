package frontend

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/Sumatoshi-tech/aether/pkg/node"
	"github.com/Sumatoshi-tech/aether/pkg/safeconv"
)

// Render prints root back to source. Whitespace between positioned nodes is
// copied from source; nodes synthesized by a transform are printed from their
// tokens, separated from their left neighbour by one space. Source text that
// belonged to removed nodes is dropped, keeping only its surrounding
// whitespace, or a single space when none surrounded it.
func Render(root *node.Node, source []byte) []byte {
	if root == nil {
		return nil
	}

	var buf bytes.Buffer

	buf.Grow(len(source))

	if root.Pos != nil {
		buf.WriteString(slice(source, 0, root.Pos.StartOffset))
	}

	printer := &printer{buf: &buf, source: source}
	printer.print(root)

	if root.Pos != nil {
		buf.WriteString(slice(source, root.Pos.EndOffset, safeconv.MustIntToUint(len(source))))
	}

	return buf.Bytes()
}

type printer struct {
	buf    *bytes.Buffer
	source []byte
}

type printFrame struct {
	target *node.Node
	// cursor is the source offset printed so far within target.
	cursor uint
	next   int
}

func (printer *printer) print(root *node.Node) {
	stack := []*printFrame{printer.open(root)}

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if top.target.IsLeaf() || top.next >= len(top.target.Children) {
			printer.closeFrame(top)
			stack = stack[:len(stack)-1]

			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				if top.target.Pos != nil {
					parent.cursor = max(parent.cursor, top.target.Pos.EndOffset)
				}
			}

			continue
		}

		child := top.target.Children[top.next]
		top.next++

		if child == nil {
			continue
		}

		switch {
		case child.Pos != nil && top.target.Pos != nil:
			printer.gap(top.cursor, child.Pos.StartOffset)
		case child.Pos == nil && top.target.Pos != nil:
			printer.buf.WriteByte(' ')
		}

		stack = append(stack, printer.open(child))
	}
}

func (printer *printer) open(target *node.Node) *printFrame {
	frame := &printFrame{target: target}

	if target.Pos != nil {
		frame.cursor = target.Pos.StartOffset
	}

	if target.IsLeaf() {
		printer.buf.WriteString(target.Token)
	}

	return frame
}

func (printer *printer) closeFrame(frame *printFrame) {
	if frame.target.IsLeaf() || frame.target.Pos == nil {
		return
	}

	printer.gap(frame.cursor, frame.target.Pos.EndOffset)
}

// gap prints the source between two positioned nodes. A gap that holds more
// than whitespace covered something that has since been removed.
func (printer *printer) gap(from, to uint) {
	if to <= from {
		return
	}

	text := slice(printer.source, from, to)
	if isBlank(text) {
		printer.buf.WriteString(text)

		return
	}

	if lead := text[:len(text)-len(strings.TrimLeftFunc(text, unicode.IsSpace))]; lead != "" {
		printer.buf.WriteString(lead)

		return
	}

	if trail := text[len(strings.TrimRightFunc(text, unicode.IsSpace)):]; trail != "" {
		printer.buf.WriteString(trail)

		return
	}

	// Removed text that touched both neighbours still separated them.
	printer.buf.WriteByte(' ')
}

func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

func slice(source []byte, start, end uint) string {
	if start > end || safeconv.MustUintToInt(end) > len(source) {
		return ""
	}

	return string(source[start:end])
}
