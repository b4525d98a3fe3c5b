// Package sourcemap holds the position table a host supplies with every
// invocation, and the shared read-only handle the transform reads it through.
package sourcemap

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/Sumatoshi-tech/aether/pkg/alg/interval"
	"github.com/Sumatoshi-tech/aether/pkg/safeconv"
)

// Sentinel errors for position lookups.
var (
	ErrOffsetOutOfRange = errors.New("offset out of range")
	ErrNoPosition       = errors.New("node has no position")
	ErrSourceTooLarge   = errors.New("source exceeds 4 GiB")
	ErrInvalidSegment   = errors.New("invalid segment")
)

// Position is a resolved location in an original source file.
// Line and Column are 1-based; Column counts bytes. Offset is a byte offset.
type Position struct {
	File   string `json:"file"`
	Line   uint   `json:"line"`
	Column uint   `json:"column"`
	Offset uint   `json:"offset"`
}

// String renders the position as file:line:col.
func (pos Position) String() string {
	return fmt.Sprintf("%s:%d:%d", pos.File, pos.Line, pos.Column)
}

// Span is a resolved [Start, End) range.
type Span struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Segment maps the generated byte range [GeneratedStart, GeneratedEnd) onto
// the original position it came from, typically recorded by an earlier
// transform stage.
type Segment struct {
	GeneratedStart uint     `json:"generated_start"`
	GeneratedEnd   uint     `json:"generated_end"`
	Original       Position `json:"original"`
}

// Map correlates byte offsets of one compilation unit with original source
// positions. A Map is immutable after construction and safe for concurrent reads.
type Map struct {
	file       string
	size       uint
	lineStarts []uint
	segments   *interval.Tree[Segment]
}

// Option configures a Map.
type Option func(*Map) error

// WithSegments records generated-to-original segments. Lookups inside a
// segment resolve to the innermost segment's original position.
func WithSegments(segments ...Segment) Option {
	return func(sourceMap *Map) error {
		for _, segment := range segments {
			if segment.GeneratedEnd <= segment.GeneratedStart || segment.GeneratedEnd > sourceMap.size {
				return fmt.Errorf("%w: %d-%d in %s (%d bytes)", ErrInvalidSegment,
					segment.GeneratedStart, segment.GeneratedEnd, sourceMap.file, sourceMap.size)
			}

			// The interval tree stores closed ranges.
			sourceMap.segments.Insert(
				safeconv.MustUintToUint32(segment.GeneratedStart),
				safeconv.MustUintToUint32(segment.GeneratedEnd-1),
				segment,
			)
		}

		return nil
	}
}

// New builds a Map for content stored under file.
func New(file string, content []byte, opts ...Option) (*Map, error) {
	if uint64(len(content)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %s", ErrSourceTooLarge, file)
	}

	sourceMap := &Map{
		file:       file,
		size:       safeconv.MustIntToUint(len(content)),
		lineStarts: lineStarts(content),
		segments:   interval.New[Segment](),
	}

	for _, opt := range opts {
		err := opt(sourceMap)
		if err != nil {
			return nil, err
		}
	}

	return sourceMap, nil
}

// MustNew is New for inputs known to be valid; it panics on error.
func MustNew(file string, content []byte, opts ...Option) *Map {
	sourceMap, err := New(file, content, opts...)
	if err != nil {
		panic(err)
	}

	return sourceMap
}

func lineStarts(content []byte) []uint {
	starts := []uint{0}

	for idx, ch := range content {
		if ch == '\n' {
			starts = append(starts, safeconv.MustIntToUint(idx)+1)
		}
	}

	return starts
}

// File returns the file name the map was built for.
func (sourceMap *Map) File() string {
	return sourceMap.file
}

// Size returns the number of bytes covered by the map.
func (sourceMap *Map) Size() uint {
	return sourceMap.size
}

// Lines returns the number of lines in the source.
func (sourceMap *Map) Lines() int {
	return len(sourceMap.lineStarts)
}

// Segments returns the number of recorded segments.
func (sourceMap *Map) Segments() int {
	return sourceMap.segments.Len()
}

// Locate resolves a byte offset. Offsets inside a segment resolve to the
// segment's original position; other offsets resolve within the map's own file.
// The offset one past the last byte is valid and names the end of file.
func (sourceMap *Map) Locate(offset uint) (Position, error) {
	if offset > sourceMap.size {
		return Position{}, fmt.Errorf("%w: %d > %d in %s", ErrOffsetOutOfRange, offset, sourceMap.size, sourceMap.file)
	}

	if segment, ok := sourceMap.segments.Innermost(safeconv.MustUintToUint32(offset)); ok {
		return segment.Value.Original, nil
	}

	line, found := slices.BinarySearch(sourceMap.lineStarts, offset)
	if !found {
		line--
	}

	return Position{
		File:   sourceMap.file,
		Line:   safeconv.MustIntToUint(line) + 1,
		Column: offset - sourceMap.lineStarts[line] + 1,
		Offset: offset,
	}, nil
}
