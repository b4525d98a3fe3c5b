package plugin

import (
	"github.com/Sumatoshi-tech/aether/pkg/sourcemap"
)

// InvocationMetadata is the Metadata hosts in this module build for each unit.
type InvocationMetadata struct {
	sourceMap  *sourcemap.Map
	config     string
	hasConfig  bool
	hasChannel bool
}

// MetadataOption configures InvocationMetadata.
type MetadataOption func(*InvocationMetadata)

// WithPluginConfig puts raw on the configuration channel.
func WithPluginConfig(raw string) MetadataOption {
	return func(meta *InvocationMetadata) {
		meta.config = raw
		meta.hasConfig = true
	}
}

// WithoutConfigChannel builds metadata that lacks the configuration channel
// entirely, as an old host would.
func WithoutConfigChannel() MetadataOption {
	return func(meta *InvocationMetadata) {
		meta.hasChannel = false
	}
}

// NewMetadata builds metadata over sourceMap. By default the configuration
// channel exists but carries no payload.
func NewMetadata(sourceMap *sourcemap.Map, opts ...MetadataOption) Metadata {
	meta := &InvocationMetadata{sourceMap: sourceMap, hasChannel: true}

	for _, opt := range opts {
		opt(meta)
	}

	if !meta.hasChannel {
		return channelless{meta}
	}

	return meta
}

// SourceMap returns the unit's position table. A nil receiver has none.
func (meta *InvocationMetadata) SourceMap() *sourcemap.Map {
	if meta == nil {
		return nil
	}

	return meta.sourceMap
}

// PluginConfig returns the configuration payload, if any.
func (meta *InvocationMetadata) PluginConfig() (string, bool) {
	if meta == nil {
		return "", false
	}

	return meta.config, meta.hasConfig
}

// channelless hides PluginConfig so the value no longer satisfies ConfigProvider.
type channelless struct {
	meta *InvocationMetadata
}

func (wrapped channelless) SourceMap() *sourcemap.Map {
	return wrapped.meta.sourceMap
}
