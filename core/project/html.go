package project

import (
	"fmt"
	"html"
	"io"
	"iter"
)

// RenderHTML writes the segment stream as nested <span> wrappers. A
// wrapper opens when its range starts and closes when it ends, with
// inner wrappers closing strictly before outer ones. Segment text and
// attribute values are HTML-escaped; archive contents are untrusted.
func RenderHTML(writer io.Writer, sequence iter.Seq[Segment]) error {
	var open []Marker
	for segment := range sequence {
		shared := sharedPrefix(open, segment.Markers)
		for index := len(open) - 1; index >= shared; index-- {
			if _, err := io.WriteString(writer, "</span>"); err != nil {
				return err
			}
		}
		for index := shared; index < len(segment.Markers); index++ {
			marker := segment.Markers[index]
			if _, err := fmt.Fprintf(writer, `<span class="%s" title="%s" data-event="%d">`,
				html.EscapeString(marker.DisplayClass), html.EscapeString(marker.Tooltip), marker.EventIndex); err != nil {
				return err
			}
		}
		open = segment.Markers
		if _, err := io.WriteString(writer, html.EscapeString(segment.Text)); err != nil {
			return err
		}
	}
	for range open {
		if _, err := io.WriteString(writer, "</span>"); err != nil {
			return err
		}
	}
	return nil
}

func sharedPrefix(open, next []Marker) int {
	limit := len(open)
	if len(next) < limit {
		limit = len(next)
	}
	for index := 0; index < limit; index++ {
		if open[index].EventIndex != next[index].EventIndex {
			return index
		}
	}
	return limit
}
