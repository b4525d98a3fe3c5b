package plugin_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/aether/pkg/aether"
	"github.com/Sumatoshi-tech/aether/pkg/node"
	"github.com/Sumatoshi-tech/aether/pkg/plugin"
	"github.com/Sumatoshi-tech/aether/pkg/sourcemap"
)

// source is described by program(): `<a/>` followed by a comment.
const source = "<a/>//c\n"

func pos(start, end uint) *node.Positions {
	return &node.Positions{StartLine: 1, StartCol: start + 1, StartOffset: start, EndLine: 1, EndCol: end + 1, EndOffset: end}
}

func program() *node.Node {
	element := &node.Node{Type: node.TypeJSXSelfClosing, Named: true, Pos: pos(0, 4), Children: []*node.Node{
		{Type: "<", Token: "<", Pos: pos(0, 1)},
		{Type: node.TypeIdentifier, Token: "a", Named: true, Pos: pos(1, 2)},
		{Type: "/", Token: "/", Pos: pos(2, 3)},
		{Type: ">", Token: ">", Pos: pos(3, 4)},
	}}
	comment := &node.Node{Type: node.TypeComment, Token: "//c", Named: true, Pos: pos(4, 7)}

	return &node.Node{Type: node.TypeProgram, Named: true, Pos: pos(0, 8), Children: []*node.Node{element, comment}}
}

func sourceMap() *sourcemap.Map {
	return sourcemap.MustNew("unit.tsx", []byte(source))
}

// countingMetadata records how often the plugin asked for the position table.
type countingMetadata struct {
	raw     string
	present bool
	calls   atomic.Int32
}

func (meta *countingMetadata) SourceMap() *sourcemap.Map {
	meta.calls.Add(1)

	return sourceMap()
}

func (meta *countingMetadata) PluginConfig() (string, bool) {
	return meta.raw, meta.present
}

func TestTransform_Scenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		opts        []plugin.MetadataOption
		wantMutated bool
	}{
		{"A absent config enables all rules", nil, true},
		{"B all false disables rules", []plugin.MetadataOption{plugin.WithPluginConfig(`{"all": false}`)}, false},
		{"D null literal equals absent", []plugin.MetadataOption{plugin.WithPluginConfig("null")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tree := program()
			before := tree.Clone()

			got, err := plugin.Transform(tree, plugin.NewMetadata(sourceMap(), tt.opts...))
			require.NoError(t, err)
			assert.Same(t, tree, got)

			if !tt.wantMutated {
				assert.Equal(t, before, got)

				return
			}

			assert.Empty(t, got.FindByType(node.TypeComment))

			elements := got.FindByType(node.TypeJSXSelfClosing)
			require.Len(t, elements, 1)
			assert.NotNil(t, aether.FindAttribute(elements[0], aether.AttrOID))
		})
	}
}

func TestTransform_ScenarioC_MalformedAbortsBeforeInvoker(t *testing.T) {
	t.Parallel()

	meta := &countingMetadata{raw: `{"all": nope}`, present: true}
	tree := program()
	before := tree.Clone()

	got, err := plugin.Transform(tree, meta)
	require.ErrorIs(t, err, plugin.ErrConfigMalformed)
	assert.Nil(t, got)
	assert.Equal(t, before, tree, "tree must not be touched")
	assert.Zero(t, meta.calls.Load(), "position map must not be requested")
}

func TestTransform_ConfigChannelMissing(t *testing.T) {
	t.Parallel()

	tree := program()
	before := tree.Clone()

	got, err := plugin.Transform(tree, plugin.NewMetadata(sourceMap(), plugin.WithoutConfigChannel()))
	require.ErrorIs(t, err, plugin.ErrConfigChannelMissing)
	assert.Nil(t, got)
	assert.Equal(t, before, tree)

	_, err = plugin.Transform(tree, nil)
	require.ErrorIs(t, err, plugin.ErrConfigChannelMissing)

	var typedNil *plugin.InvocationMetadata

	require.NotPanics(t, func() {
		got, err = plugin.Transform(tree, typedNil)
	})
	require.ErrorIs(t, err, plugin.ErrConfigChannelMissing)
	assert.Nil(t, got)
	assert.Equal(t, before, tree)
}

func TestTransform_EmptyChannelIsNotMissing(t *testing.T) {
	t.Parallel()

	meta := &countingMetadata{}

	_, err := plugin.Transform(program(), meta)
	require.NoError(t, err)
	assert.Equal(t, int32(1), meta.calls.Load())
}

func TestTransform_Failures(t *testing.T) {
	t.Parallel()

	_, err := plugin.Transform(nil, plugin.NewMetadata(sourceMap()))
	require.ErrorIs(t, err, plugin.ErrTransformFailure)

	_, err = plugin.Transform(program(), plugin.NewMetadata(nil))
	require.ErrorIs(t, err, plugin.ErrTransformFailure)
	require.ErrorIs(t, err, sourcemap.ErrNilMap)

	_, err = plugin.Transform(program(), plugin.NewMetadata(sourceMap(), plugin.WithPluginConfig(`{"rules": ["nope"]}`)))
	require.ErrorIs(t, err, plugin.ErrTransformFailure)
	require.ErrorIs(t, err, aether.ErrUnknownRule)

	broken := program()
	broken.Children = append(broken.Children, &node.Node{Type: node.TypeError, Pos: pos(0, 1)})

	got, err := plugin.Transform(broken, plugin.NewMetadata(sourceMap()))
	require.ErrorIs(t, err, plugin.ErrTransformFailure)
	require.ErrorIs(t, err, aether.ErrMalformedTree)
	assert.Nil(t, got)
}

func TestInvoke_PropagatesVisitorFailure(t *testing.T) {
	t.Parallel()

	handle, err := sourcemap.Share(sourceMap())
	require.NoError(t, err)

	handle.Release()

	_, err = plugin.Invoke(aether.OnlyRules(aether.RuleOID), handle, program())
	require.ErrorIs(t, err, plugin.ErrTransformFailure)
	require.ErrorIs(t, err, sourcemap.ErrHandleReleased)
}

func TestTransform_ConcurrentInvocationsAreIndependent(t *testing.T) {
	t.Parallel()

	const units = 32

	results := make([]*node.Node, units)
	errs := make([]error, units)

	var wg sync.WaitGroup

	for idx := range units {
		wg.Add(1)

		go func() {
			defer wg.Done()

			content := fmt.Sprintf("%s%s", source, string(make([]byte, idx)))
			meta := plugin.NewMetadata(sourcemap.MustNew(fmt.Sprintf("unit%d.tsx", idx), []byte(content)))
			results[idx], errs[idx] = plugin.Transform(program(), meta)
		}()
	}

	wg.Wait()

	seen := map[string]bool{}

	for idx := range units {
		require.NoError(t, errs[idx])

		element := results[idx].FindByType(node.TypeJSXSelfClosing)[0]
		value, ok := aether.AttributeValue(aether.FindAttribute(element, aether.AttrOID))
		require.True(t, ok)

		assert.False(t, seen[value], "units share an oid")
		seen[value] = true

		for other := range idx {
			assert.NotSame(t, results[other], results[idx])
		}
	}
}

func TestTransformWithStats_ReportsRules(t *testing.T) {
	t.Parallel()

	_, stats, err := plugin.TransformWithStats(program(), plugin.NewMetadata(sourceMap()))
	require.NoError(t, err)

	assert.Equal(t, aether.RuleNames(), stats.Rules)
	assert.Equal(t, map[string]int{
		aether.RuleOID:            1,
		aether.RuleSourceLocation: 1,
		aether.RuleStripComments:  1,
	}, stats.Applied)

	_, stats, err = plugin.TransformWithStats(program(), plugin.NewMetadata(sourceMap(), plugin.WithPluginConfig(`{"all": false}`)))
	require.NoError(t, err)
	assert.Empty(t, stats.Rules)
	assert.Empty(t, stats.Applied)
}
