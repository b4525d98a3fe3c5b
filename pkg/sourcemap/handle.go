package sourcemap

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Sumatoshi-tech/aether/pkg/node"
)

// Sentinel errors for handles.
var (
	ErrHandleReleased = errors.New("position map handle released")
	ErrNilMap         = errors.New("nil position map")
)

// Handle is a reference-counted, read-only view of a Map. The plugin entry
// point creates one handle per invocation and releases it on return, so a
// visitor that outlives its call cannot keep reading the table.
type Handle struct {
	sourceMap *Map
	refs      atomic.Int64
}

// Share wraps sourceMap in a new handle holding one reference.
func Share(sourceMap *Map) (*Handle, error) {
	if sourceMap == nil {
		return nil, ErrNilMap
	}

	handle := &Handle{sourceMap: sourceMap}
	handle.refs.Store(1)

	return handle, nil
}

// Retain adds a reference. It fails once the handle has been fully released.
func (handle *Handle) Retain() (*Handle, error) {
	for {
		current := handle.refs.Load()
		if current <= 0 {
			return nil, ErrHandleReleased
		}

		if handle.refs.CompareAndSwap(current, current+1) {
			return handle, nil
		}
	}
}

// Release drops a reference. Extra releases are ignored.
func (handle *Handle) Release() {
	for {
		current := handle.refs.Load()
		if current <= 0 {
			return
		}

		if handle.refs.CompareAndSwap(current, current-1) {
			return
		}
	}
}

// Released reports whether every reference has been dropped.
func (handle *Handle) Released() bool {
	return handle.refs.Load() <= 0
}

func (handle *Handle) live() (*Map, error) {
	if handle == nil {
		return nil, ErrNilMap
	}

	if handle.Released() {
		return nil, ErrHandleReleased
	}

	return handle.sourceMap, nil
}

// File returns the underlying map's file name, or "" after release.
func (handle *Handle) File() string {
	sourceMap, err := handle.live()
	if err != nil {
		return ""
	}

	return sourceMap.File()
}

// Locate resolves a byte offset through the shared map.
func (handle *Handle) Locate(offset uint) (Position, error) {
	sourceMap, err := handle.live()
	if err != nil {
		return Position{}, err
	}

	return sourceMap.Locate(offset)
}

// SpanOf resolves the original span of a node. Nodes synthesized by a
// transform carry no position and yield ErrNoPosition.
func (handle *Handle) SpanOf(target *node.Node) (Span, error) {
	sourceMap, err := handle.live()
	if err != nil {
		return Span{}, err
	}

	if target == nil || target.Pos == nil {
		return Span{}, ErrNoPosition
	}

	start, err := sourceMap.Locate(target.Pos.StartOffset)
	if err != nil {
		return Span{}, fmt.Errorf("span start of %s: %w", target.Type, err)
	}

	end, err := sourceMap.Locate(target.Pos.EndOffset)
	if err != nil {
		return Span{}, fmt.Errorf("span end of %s: %w", target.Type, err)
	}

	return Span{Start: start, End: end}, nil
}
