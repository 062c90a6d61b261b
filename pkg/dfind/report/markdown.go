package report

import (
	"bytes"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

// MarkdownFormatter writes the duplicate report as GitHub-flavoured
// markdown. Each duplicate group and the folder statistics are wrapped in
// <details> blocks so large reports stay navigable.
type MarkdownFormatter struct{}

// Format writes the report to the buffer.
func (f *MarkdownFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString("# Duplicate Files Report\n\n")
	fmt.Fprintf(w, "Total files processed: %s\n\n", types.FormatCount(r.FilesScanned))

	f.writeMetadata(w, r)
	f.writeSummary(w, r)
	f.writeFolders(w, r.Folders)
	f.writeGroups(w, r.Groups)
	f.writeWarnings(w, r.Warnings)
	return nil
}

func (f *MarkdownFormatter) writeMetadata(w *bytes.Buffer, r *Result) {
	w.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(w, "| Root | %s |\n", code(r.Root))
	if r.RunID != "" {
		fmt.Fprintf(w, "| Run | %s |\n", code(r.RunID))
	}
	if !r.Generated.IsZero() {
		fmt.Fprintf(w, "| Generated | %s |\n", r.Generated.Format(time.RFC3339))
	}
	if r.Algorithm != "" {
		fmt.Fprintf(w, "| Algorithm | %s |\n", r.Algorithm)
	}
	fmt.Fprintf(w, "| Elapsed | %s |\n\n", formatDuration(r.Elapsed))
}

func (f *MarkdownFormatter) writeSummary(w *bytes.Buffer, r *Result) {
	w.WriteString("## Summary\n\n")
	fmt.Fprintf(w, "- Unique file sizes: %s\n", types.FormatCount(int64(r.UniqueSizes)))
	fmt.Fprintf(w, "- Duplicate sets: %s\n", types.FormatCount(int64(len(r.Groups))))
	fmt.Fprintf(w, "- Duplicate files: %s\n", types.FormatCount(int64(r.DuplicateFiles())))
	fmt.Fprintf(w, "- Reclaimable: %s\n", sizeWithBytes(r.Reclaimable()))
	if len(r.Warnings) > 0 {
		fmt.Fprintf(w, "- Warnings: %s\n", types.FormatCount(int64(len(r.Warnings))))
	}
	w.WriteString("\n")
}

func (f *MarkdownFormatter) writeFolders(w *bytes.Buffer, folders []types.FolderStats) {
	if len(folders) == 0 {
		return
	}

	w.WriteString("<details>\n")
	fmt.Fprintf(w, "<summary><strong>Folder Sizes and File Counts</strong> (%s folders)</summary>\n\n",
		types.FormatCount(int64(len(folders))))
	w.WriteString("| Folder | Files | Size |\n|---|---:|---:|\n")
	for _, folder := range folders {
		fmt.Fprintf(w, "| %s | %s | %s |\n",
			code(folder.Path), types.FormatCount(folder.Files), sizeWithBytes(folder.Bytes))
	}
	w.WriteString("\n</details>\n\n")
}

func (f *MarkdownFormatter) writeGroups(w *bytes.Buffer, groups []types.DuplicateGroup) {
	w.WriteString("## Duplicates\n\n")
	if len(groups) == 0 {
		w.WriteString("No duplicate files found.\n\n")
		return
	}

	for i := range groups {
		g := &groups[i]
		w.WriteString("<details>\n")
		fmt.Fprintf(w, "<summary>Duplicate Set %d: %d files of %s (%s reclaimable)</summary>\n\n",
			i+1, len(g.Files), types.FormatSize(g.Size), types.FormatSize(g.Reclaimable()))
		fmt.Fprintf(w, "Size: %s bytes, digest %s\n\n", types.FormatCount(g.Size), code(g.Digest.Short()))
		for _, rec := range g.Files {
			fmt.Fprintf(w, "- [%s](%s)\n", escape(rec.Path), fileURL(rec.Path))
		}
		w.WriteString("\n</details>\n\n")
	}
}

func (f *MarkdownFormatter) writeWarnings(w *bytes.Buffer, warnings []types.ScanWarning) {
	if len(warnings) == 0 {
		return
	}

	w.WriteString("## Warnings\n\n")
	w.WriteString("These paths were left out of the comparison.\n\n")
	for _, warn := range warnings {
		fmt.Fprintf(w, "- %s (%s): %s\n", code(warn.Path), warn.Kind, escape(warn.Message()))
	}
	w.WriteString("\n")
}

// fileURL returns a file:// link for an absolute path with reserved
// characters percent-encoded.
func fileURL(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p}
	return linkParens.Replace(u.String())
}

// linkParens percent-encodes parentheses so an unbalanced ")" cannot end
// a markdown link target early.
var linkParens = strings.NewReplacer("(", "%28", ")", "%29")

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"<", "&lt;",
	">", "&gt;",
	"|", `\|`,
)

// escape neutralizes markdown and HTML metacharacters in free text.
func escape(s string) string {
	return markdownEscaper.Replace(s)
}

// code renders s as inline code, widening the fence when s holds backticks.
func code(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	if !strings.Contains(s, "`") {
		return "`" + s + "`"
	}
	return "`` " + s + " ``"
}

func sizeWithBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d bytes", n)
	}
	return fmt.Sprintf("%s (%s bytes)", types.FormatSize(n), types.FormatCount(n))
}
