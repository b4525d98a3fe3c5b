// Package frontend lowers JavaScript, TypeScript and TSX sources into program
// trees with tree-sitter, builds the matching position map, and prints
// transformed trees back to source.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/aether/pkg/node"
	"github.com/Sumatoshi-tech/aether/pkg/safeconv"
	"github.com/Sumatoshi-tech/aether/pkg/sourcemap"
)

// Sentinel errors for parsing.
var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrNoRootNode          = errors.New("no root node")
	errPoolType            = errors.New("unexpected parser pool type")
)

// TypeSourceText marks uncovered source text the grammar did not attach to
// any child, so printing never depends on gaps holding only whitespace.
const TypeSourceText node.Type = "source_text"

// Unit is one parsed compilation unit.
type Unit struct {
	File     string
	Language string
	Source   []byte
	Tree     *node.Node
	Map      *sourcemap.Map

	alloc *node.Allocator
}

// Parser parses sources with pooled tree-sitter parsers, one pool per grammar.
// Node allocators are pooled across units and come back through Release.
// It is safe for concurrent use.
type Parser struct {
	mu     sync.Mutex
	pools  map[string]*sync.Pool
	allocs sync.Pool
}

// NewParser creates a Parser. Grammars are loaded on first use.
func NewParser() *Parser {
	return &Parser{
		pools:  make(map[string]*sync.Pool),
		allocs: sync.Pool{New: func() any { return &node.Allocator{} }},
	}
}

// Parse detects the language of filename and parses content. opts configure
// the unit's position map.
func (parser *Parser) Parse(ctx context.Context, filename string, content []byte, opts ...sourcemap.Option) (*Unit, error) {
	language := DetectLanguage(filename, content)
	if language == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, filename)
	}

	return parser.ParseLanguage(ctx, language, filename, content, opts...)
}

// ParseLanguage parses content with the named grammar.
func (parser *Parser) ParseLanguage(
	ctx context.Context, language, filename string, content []byte, opts ...sourcemap.Option,
) (*Unit, error) {
	pool, err := parser.pool(language)
	if err != nil {
		return nil, err
	}

	sourceMap, err := sourcemap.New(filename, content, opts...)
	if err != nil {
		return nil, fmt.Errorf("position map for %s: %w", filename, err)
	}

	tsParser, ok := pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer pool.Put(tsParser)

	tree, err := tsParser.ParseString(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return nil, fmt.Errorf("%w: %s", ErrNoRootNode, filename)
	}

	alloc, ok := parser.allocs.Get().(*node.Allocator)
	if !ok {
		return nil, errPoolType
	}

	return &Unit{
		File:     filename,
		Language: language,
		Source:   content,
		Tree:     lower(alloc, root, content, sourceMap),
		Map:      sourceMap,
		alloc:    alloc,
	}, nil
}

// Release recycles the nodes of tree, the unit's program tree after any
// transform, for later parses. Neither the tree nor unit.Tree may be used
// afterwards. Releasing a unit twice is a no-op.
func (parser *Parser) Release(unit *Unit, tree *node.Node) {
	if unit == nil || unit.alloc == nil {
		return
	}

	unit.alloc.ReleaseTree(tree)
	parser.allocs.Put(unit.alloc)

	unit.alloc = nil
	unit.Tree = nil
}

func (parser *Parser) pool(language string) (*sync.Pool, error) {
	parser.mu.Lock()
	defer parser.mu.Unlock()

	if pool, ok := parser.pools[language]; ok {
		return pool, nil
	}

	lang := GetLanguage(language)
	if lang == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	pool := &sync.Pool{
		New: func() any {
			tsParser := sitter.NewParser()
			tsParser.SetLanguage(lang)

			return tsParser
		},
	}
	parser.pools[language] = pool

	return pool, nil
}

type lowerFrame struct {
	ts  sitter.Node
	dst *node.Node
}

// lower converts a tree-sitter tree into a program tree, keeping anonymous
// children so the tree prints back to its source.
func lower(alloc *node.Allocator, root sitter.Node, source []byte, sourceMap *sourcemap.Map) *node.Node {
	out := lowerNode(alloc, root, source)

	stack := []lowerFrame{{ts: root, dst: out}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		count := top.ts.ChildCount()
		if count == 0 {
			continue
		}

		top.dst.Children = make([]*node.Node, 0, count)
		cursor := top.ts.StartByte()

		for idx := range count {
			child := top.ts.Child(idx)
			if child.IsNull() {
				continue
			}

			if gap := uncovered(alloc, source, sourceMap, cursor, child.StartByte()); gap != nil {
				top.dst.Children = append(top.dst.Children, gap)
			}

			lowered := lowerNode(alloc, child, source)
			top.dst.Children = append(top.dst.Children, lowered)
			stack = append(stack, lowerFrame{ts: child, dst: lowered})

			cursor = max(cursor, child.EndByte())
		}

		if gap := uncovered(alloc, source, sourceMap, cursor, top.ts.EndByte()); gap != nil {
			top.dst.Children = append(top.dst.Children, gap)
		}
	}

	return out
}

func lowerNode(alloc *node.Allocator, tsNode sitter.Node, source []byte) *node.Node {
	start := tsNode.StartPoint()
	end := tsNode.EndPoint()

	pos := alloc.NewPositions(
		start.Row+1,
		start.Column+1,
		tsNode.StartByte(),
		end.Row+1,
		end.Column+1,
		tsNode.EndByte(),
	)

	token := ""
	if tsNode.ChildCount() == 0 {
		token = text(source, tsNode.StartByte(), tsNode.EndByte())
	}

	return alloc.NewNode(node.Type(tsNode.Type()), token, tsNode.IsNamed(), pos)
}

// uncovered returns a source_text leaf for [from, to) when that range holds
// anything but whitespace.
func uncovered(alloc *node.Allocator, source []byte, sourceMap *sourcemap.Map, from, to uint) *node.Node {
	if to <= from {
		return nil
	}

	gap := text(source, from, to)
	if isBlank(gap) {
		return nil
	}

	start, startErr := sourceMap.Locate(from)
	end, endErr := sourceMap.Locate(to)

	if startErr != nil || endErr != nil {
		return alloc.NewNode(TypeSourceText, gap, false, alloc.NewPositions(0, 0, from, 0, 0, to))
	}

	return alloc.NewNode(TypeSourceText, gap, false,
		alloc.NewPositions(start.Line, start.Column, from, end.Line, end.Column, to))
}

func text(source []byte, start, end uint) string {
	if safeconv.MustUintToInt(end) > len(source) || start > end {
		return ""
	}

	return string(source[start:end])
}
