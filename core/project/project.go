// Package project maps offset-addressed events onto the document text,
// producing a structurally annotated segment stream. Projection is a
// pure function of its inputs: re-invoking Project restarts the walk.
package project

import (
	"iter"
	"sort"
	"strconv"
	"strings"

	coreerrors "github.com/Functional-Intelligence-Research-Lab/twff/core/errors"
	schematwff "github.com/Functional-Intelligence-Research-Lab/twff/core/schema/v1/twff"
	"github.com/Functional-Intelligence-Research-Lab/twff/core/styles"
)

// Marker is one active annotation on a segment, resolved through the
// style registry.
type Marker struct {
	Kind            schematwff.EventKind
	InteractionType string
	DisplayClass    string
	Label           string
	Tooltip         string
	Start           int
	End             int
	EventIndex      int
}

// Segment is a run of content text: plain when Markers is empty,
// wrapped otherwise. Markers are ordered outermost first; wrappers
// close innermost first.
type Segment struct {
	Text    string
	Markers []Marker
}

// Plain reports whether the segment carries no annotation.
func (s Segment) Plain() bool {
	return len(s.Markers) == 0
}

type span struct {
	start      int
	end        int
	eventIndex int
	marker     Marker
}

// Project validates every offset range against the content snapshot,
// classifies range pairs, and returns a lazily walked segment
// sequence. Concatenating the text of all emitted segments reproduces
// content exactly. Offsets are rune positions.
func Project(content string, events []schematwff.Event, registry styles.Registry) (iter.Seq[Segment], error) {
	runes := []rune(content)
	spans, err := collectSpans(runes, events, registry)
	if err != nil {
		return nil, err
	}
	if err := checkCrossings(spans); err != nil {
		return nil, err
	}
	boundaries := collectBoundaries(len(runes), spans)

	sequence := func(yield func(Segment) bool) {
		for index := 0; index+1 < len(boundaries); index++ {
			from, to := boundaries[index], boundaries[index+1]
			segment := Segment{Text: string(runes[from:to])}
			for _, active := range spans {
				if active.start <= from && active.end >= to {
					segment.Markers = append(segment.Markers, active.marker)
				}
			}
			if !yield(segment) {
				return
			}
		}
	}
	return sequence, nil
}

// Collect renders the whole projection eagerly, for callers that want
// a slice rather than a walk.
func Collect(content string, events []schematwff.Event, registry styles.Registry) ([]Segment, error) {
	sequence, err := Project(content, events, registry)
	if err != nil {
		return nil, err
	}
	var segments []Segment
	for segment := range sequence {
		segments = append(segments, segment)
	}
	return segments, nil
}

func collectSpans(runes []rune, events []schematwff.Event, registry styles.Registry) ([]span, error) {
	var spans []span
	for index, event := range events {
		ranged, ok := event.Meta.(schematwff.Ranged)
		if !ok {
			continue
		}
		start, end := ranged.Range()
		if start < 0 || start > end {
			return nil, coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeOffsetOutOfRange,
				"event %d has invalid range (%d,%d)", index, start, end)
		}
		if end > len(runes) {
			return nil, coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeOffsetOutOfRange,
				"event %d range end %d exceeds content length %d", index, end, len(runes))
		}
		if start == end {
			// Zero-width ranges select no text.
			continue
		}
		spans = append(spans, span{
			start:      start,
			end:        end,
			eventIndex: index,
			marker:     resolveMarker(event, index, start, end, registry),
		})
	}

	// Outer ranges open first: start ascending, end descending, ties
	// stacked in event order so the latest event sits innermost.
	sort.SliceStable(spans, func(left, right int) bool {
		if spans[left].start != spans[right].start {
			return spans[left].start < spans[right].start
		}
		if spans[left].end != spans[right].end {
			return spans[left].end > spans[right].end
		}
		return spans[left].eventIndex < spans[right].eventIndex
	})
	return spans, nil
}

// checkCrossings rejects partially overlapping ranges: the projector
// refuses to guess a resolution for a crossing pair.
func checkCrossings(spans []span) error {
	for left := 0; left < len(spans); left++ {
		for right := left + 1; right < len(spans); right++ {
			first, second := spans[left], spans[right]
			if second.start >= first.end {
				break
			}
			if second.start > first.start && second.end > first.end {
				return coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeOverlappingRangeConflict,
					"events %d and %d partially overlap: (%d,%d) vs (%d,%d)",
					first.eventIndex, second.eventIndex, first.start, first.end, second.start, second.end)
			}
		}
	}
	return nil
}

func collectBoundaries(contentLen int, spans []span) []int {
	seen := map[int]struct{}{0: {}, contentLen: {}}
	for _, current := range spans {
		seen[current.start] = struct{}{}
		seen[current.end] = struct{}{}
	}
	boundaries := make([]int, 0, len(seen))
	for boundary := range seen {
		boundaries = append(boundaries, boundary)
	}
	sort.Ints(boundaries)
	return boundaries
}

func resolveMarker(event schematwff.Event, index, start, end int, registry styles.Registry) Marker {
	interaction := interactionOf(event.Meta)
	style, found := registry.Lookup(event.Kind, interaction)
	if !found {
		style = styles.Style{
			DisplayClass: "ann-" + string(event.Kind),
			Label:        string(event.Kind),
		}
	}
	return Marker{
		Kind:            event.Kind,
		InteractionType: interaction,
		DisplayClass:    style.DisplayClass,
		Label:           style.Label,
		Tooltip:         expandTooltip(style, event.Meta),
		Start:           start,
		End:             end,
		EventIndex:      index,
	}
}

// interactionOf yields the registry sub-key for an event: the
// interaction type for AI interactions, the paste source for pastes.
func interactionOf(meta schematwff.EventMeta) string {
	switch payload := meta.(type) {
	case schematwff.AIInteractionMeta:
		return payload.InteractionType
	case schematwff.PasteMeta:
		return payload.Source
	}
	return ""
}

func expandTooltip(style styles.Style, meta schematwff.EventMeta) string {
	if style.TooltipTemplate == "" {
		return style.Label
	}
	replacements := []string{}
	switch payload := meta.(type) {
	case schematwff.AIInteractionMeta:
		replacements = append(replacements,
			"{model}", payload.Model,
			"{interaction_type}", payload.InteractionType,
			"{acceptance}", payload.Acceptance,
			"{output_length}", strconv.Itoa(payload.OutputLength),
		)
	case schematwff.PasteMeta:
		replacements = append(replacements,
			"{source}", payload.Source,
			"{char_count}", strconv.Itoa(payload.CharCount),
		)
	case schematwff.EditMeta:
		replacements = append(replacements, "{source}", payload.Source)
	}
	return strings.NewReplacer(replacements...).Replace(style.TooltipTemplate)
}
