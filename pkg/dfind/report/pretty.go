package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

// DefaultTopGroups is how many groups the pretty summary lists.
const DefaultTopGroups = 10

// PrettyFormatter renders a short styled summary for the terminal. The
// full listing lives in the markdown report.
type PrettyFormatter struct {
	// TopGroups limits the groups listed. Zero uses DefaultTopGroups.
	TopGroups int
}

// Format writes the summary to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatGroups(r.Groups))
	w.WriteString(f.formatFooter(r))
	w.WriteString("\n")

	if len(r.Warnings) > 0 {
		w.WriteString(f.formatWarnings(len(r.Warnings)))
	}
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Result) string {
	lines := []string{
		LabelStyle.Render("Root:") + " " + ValueStyle.Render(r.Root),
		LabelStyle.Render("Scanned:") + " " + ValueStyle.Render(fmt.Sprintf("%s files, %s unique sizes in %s",
			types.FormatCount(r.FilesScanned), types.FormatCount(int64(r.UniqueSizes)), formatDuration(r.Elapsed))),
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatGroups(groups []types.DuplicateGroup) string {
	if len(groups) == 0 {
		return SuccessStyle.Render("  No duplicate files found") + "\n"
	}

	limit := f.TopGroups
	if limit <= 0 {
		limit = DefaultTopGroups
	}
	shown := groups
	if len(shown) > limit {
		shown = shown[:limit]
	}

	sizes := make([]string, len(shown))
	width := len("SIZE")
	for i := range shown {
		sizes[i] = types.FormatSize(shown[i].Size)
		width = max(width, len(sizes[i]))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s%s  %s\n",
		TableHeaderStyle.Render(padLeft("SIZE", width)), TableHeaderStyle.Render("COPIES"), TableHeaderStyle.Render("FIRST PATH")))
	for i := range shown {
		g := &shown[i]
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			SizeStyle.Render(padLeft(sizes[i], width)),
			ValueStyle.Render(padLeft(fmt.Sprintf("x%d", len(g.Files)), len("COPIES"))),
			PathStyle.Render(g.Files[0].Path)))
	}
	if rest := len(groups) - len(shown); rest > 0 {
		sb.WriteString(MutedStyle.Render(fmt.Sprintf("  ... and %d more sets in the report", rest)))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Result) string {
	parts := []string{
		LabelStyle.Render("Sets:") + " " + ValueStyle.Render(types.FormatCount(int64(len(r.Groups)))),
		LabelStyle.Render("Files:") + " " + ValueStyle.Render(types.FormatCount(int64(r.DuplicateFiles()))),
		LabelStyle.Render("Reclaimable:") + " " + SizeStyle.Render(types.FormatSize(r.Reclaimable())),
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatWarnings(n int) string {
	noun := "paths"
	if n == 1 {
		noun = "path"
	}
	return WarningStyle.Render(fmt.Sprintf("%d %s skipped, see the report for details", n, noun)) + "\n"
}

// padLeft pads s with spaces on the left to width.
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// formatDuration rounds d for display: milliseconds under a second,
// tenths of a second under a minute, whole seconds beyond.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}
