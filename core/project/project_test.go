package project

import (
	"bytes"
	"strings"
	"testing"
	"time"

	coreerrors "github.com/Functional-Intelligence-Research-Lab/twff/core/errors"
	schematwff "github.com/Functional-Intelligence-Research-Lab/twff/core/schema/v1/twff"
	"github.com/Functional-Intelligence-Research-Lab/twff/core/styles"
)

var eventTime = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func pasteEvent(start, end int, source string) schematwff.Event {
	return schematwff.Event{
		Timestamp: eventTime,
		Kind:      schematwff.EventPaste,
		Meta: schematwff.PasteMeta{
			CharCount:     end - start,
			Source:        source,
			PositionStart: start,
			PositionEnd:   end,
		},
	}
}

func editEvent(start, end int) schematwff.Event {
	return schematwff.Event{
		Timestamp: eventTime,
		Kind:      schematwff.EventEdit,
		Meta:      schematwff.EditMeta{PositionStart: start, PositionEnd: end, Source: schematwff.EditSourceHuman},
	}
}

func aiEvent(start, end int, interaction string) schematwff.Event {
	return schematwff.Event{
		Timestamp: eventTime,
		Kind:      schematwff.EventAIInteraction,
		Meta: schematwff.AIInteractionMeta{
			InteractionType: interaction,
			Model:           "gpt-test",
			OutputLength:    end - start,
			PositionStart:   start,
			PositionEnd:     end,
			Acceptance:      schematwff.AcceptanceFull,
		},
	}
}

func segmentTexts(segments []Segment) []string {
	texts := make([]string, 0, len(segments))
	for _, segment := range segments {
		texts = append(texts, segment.Text)
	}
	return texts
}

func TestProjectSplitsAroundRanges(t *testing.T) {
	content := "Hello world"
	events := []schematwff.Event{
		pasteEvent(0, 5, schematwff.PasteSourceExternal),
		editEvent(6, 11),
	}
	segments, err := Collect(content, events, styles.Default())
	if err != nil {
		t.Fatalf("project: %v", err)
	}

	texts := segmentTexts(segments)
	want := []string{"Hello", " ", "world"}
	if len(texts) != len(want) {
		t.Fatalf("expected %v, got %v", want, texts)
	}
	for index := range want {
		if texts[index] != want[index] {
			t.Fatalf("expected %v, got %v", want, texts)
		}
	}

	if segments[0].Plain() || !segments[1].Plain() || segments[2].Plain() {
		t.Fatalf("unexpected plain flags: %+v", segments)
	}
	if segments[0].Markers[0].DisplayClass != "ann-external" {
		t.Fatalf("unexpected paste class %q", segments[0].Markers[0].DisplayClass)
	}
	if segments[2].Markers[0].DisplayClass != "ann-edit" {
		t.Fatalf("unexpected edit class %q", segments[2].Markers[0].DisplayClass)
	}
}

func TestProjectConcatenationReproducesContent(t *testing.T) {
	content := "Héllo wörld — ünïcode content"
	events := []schematwff.Event{
		pasteEvent(0, 5, schematwff.PasteSourceAI),
		aiEvent(6, 11, schematwff.InteractionParaphrase),
	}
	segments, err := Collect(content, events, styles.Default())
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if joined := strings.Join(segmentTexts(segments), ""); joined != content {
		t.Fatalf("concatenated segments %q differ from content %q", joined, content)
	}
}

func TestProjectNestedRanges(t *testing.T) {
	content := "0123456789abc"
	events := []schematwff.Event{
		pasteEvent(0, 10, schematwff.PasteSourceExternal),
		aiEvent(2, 5, schematwff.InteractionParaphrase),
	}
	segments, err := Collect(content, events, styles.Default())
	if err != nil {
		t.Fatalf("project: %v", err)
	}

	var inner *Segment
	for index := range segments {
		if segments[index].Text == "234" {
			inner = &segments[index]
		}
	}
	if inner == nil {
		t.Fatalf("missing inner segment: %v", segmentTexts(segments))
	}
	if len(inner.Markers) != 2 {
		t.Fatalf("inner segment must carry both markers, got %+v", inner.Markers)
	}
	// Outermost first.
	if inner.Markers[0].Kind != schematwff.EventPaste || inner.Markers[1].Kind != schematwff.EventAIInteraction {
		t.Fatalf("unexpected marker order: %+v", inner.Markers)
	}
}

func TestProjectRejectsCrossingRanges(t *testing.T) {
	content := "0123456789"
	events := []schematwff.Event{
		pasteEvent(0, 5, schematwff.PasteSourceExternal),
		editEvent(3, 8),
	}
	_, err := Project(content, events, styles.Default())
	if coreerrors.CodeOf(err) != coreerrors.CodeOverlappingRangeConflict {
		t.Fatalf("expected overlapping_range_conflict, got %v", err)
	}
}

func TestProjectRejectsOutOfRangeOffsets(t *testing.T) {
	content := "short"
	cases := []struct {
		name  string
		event schematwff.Event
	}{
		{"end beyond content", editEvent(0, 99)},
		{"start after end", pasteEvent(4, 2, schematwff.PasteSourceExternal)},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := Project(content, []schematwff.Event{testCase.event}, styles.Default())
			if coreerrors.CodeOf(err) != coreerrors.CodeOffsetOutOfRange {
				t.Fatalf("expected offset_out_of_range, got %v", err)
			}
		})
	}
}

func TestProjectSkipsZeroWidthRanges(t *testing.T) {
	content := "Hello"
	events := []schematwff.Event{editEvent(2, 2)}
	segments, err := Collect(content, events, styles.Default())
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if len(segments) != 1 || !segments[0].Plain() {
		t.Fatalf("zero-width range must annotate nothing: %+v", segments)
	}
}

func TestProjectSequenceIsRestartable(t *testing.T) {
	content := "Hello world"
	sequence, err := Project(content, []schematwff.Event{editEvent(0, 5)}, styles.Default())
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	first := 0
	for range sequence {
		first++
	}
	second := 0
	for range sequence {
		second++
	}
	if first == 0 || first != second {
		t.Fatalf("re-walking the sequence must repeat it: %d vs %d", first, second)
	}
}

func TestProjectFallbackForUnstyledKind(t *testing.T) {
	content := "Hello"
	segments, err := Collect(content, []schematwff.Event{editEvent(0, 5)}, styles.NewRegistry())
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if segments[0].Markers[0].DisplayClass != "ann-edit" {
		t.Fatalf("expected fallback class ann-edit, got %q", segments[0].Markers[0].DisplayClass)
	}
}

func TestProjectExpandsTooltipTemplate(t *testing.T) {
	content := "0123456789"
	segments, err := Collect(content, []schematwff.Event{aiEvent(0, 5, schematwff.InteractionParaphrase)}, styles.Default())
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	tooltip := segments[0].Markers[0].Tooltip
	if !strings.Contains(tooltip, "gpt-test") || !strings.Contains(tooltip, schematwff.AcceptanceFull) {
		t.Fatalf("tooltip not expanded: %q", tooltip)
	}
}

func TestRenderHTMLEscapesAttributeValues(t *testing.T) {
	content := "0123456789"
	event := schematwff.Event{
		Timestamp: eventTime,
		Kind:      schematwff.EventAIInteraction,
		Meta: schematwff.AIInteractionMeta{
			InteractionType: schematwff.InteractionParaphrase,
			Model:           `x" onmouseover="alert(1)`,
			OutputLength:    5,
			PositionStart:   0,
			PositionEnd:     5,
			Acceptance:      schematwff.AcceptanceFull,
		},
	}
	sequence, err := Project(content, []schematwff.Event{event}, styles.Default())
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	var buf bytes.Buffer
	if err := RenderHTML(&buf, sequence); err != nil {
		t.Fatalf("render: %v", err)
	}
	rendered := buf.String()

	// A raw quote in the tooltip must never terminate the attribute.
	if strings.Contains(rendered, `" onmouseover=`) {
		t.Fatalf("attribute value not escaped: %s", rendered)
	}
	if !strings.Contains(rendered, "&#34;") {
		t.Fatalf("expected escaped quote in attribute: %s", rendered)
	}
}

func TestRenderHTMLNestsAndEscapes(t *testing.T) {
	content := "a<b & c"
	events := []schematwff.Event{
		pasteEvent(0, 7, schematwff.PasteSourceExternal),
		aiEvent(2, 5, schematwff.InteractionDraft),
	}
	sequence, err := Project(content, events, styles.Default())
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	var buf bytes.Buffer
	if err := RenderHTML(&buf, sequence); err != nil {
		t.Fatalf("render: %v", err)
	}
	rendered := buf.String()

	if strings.Contains(rendered, "<b") {
		t.Fatalf("content must be escaped: %s", rendered)
	}
	if !strings.Contains(rendered, "&amp;") {
		t.Fatalf("ampersand must be escaped: %s", rendered)
	}
	opens := strings.Count(rendered, "<span")
	closes := strings.Count(rendered, "</span>")
	if opens == 0 || opens != closes {
		t.Fatalf("unbalanced spans (%d open, %d close): %s", opens, closes, rendered)
	}
	if !strings.Contains(rendered, `class="ann-external"`) || !strings.Contains(rendered, `class="ann-generated"`) {
		t.Fatalf("expected both annotation classes: %s", rendered)
	}
}
