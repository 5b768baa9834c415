package report

import (
	"fmt"
	"iter"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/rohmanhakim/dns-cache/internal/cache"
	"github.com/rohmanhakim/dns-cache/pkg/hashutil"
)

type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatText, FormatMarkdown, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported report format: %s", name)
	}
}

// FormatForExtension maps a file extension (without dot) to a format.
func FormatForExtension(ext string) (Format, bool) {
	switch strings.ToLower(ext) {
	case "md", "markdown":
		return FormatMarkdown, true
	case "html", "htm":
		return FormatHTML, true
	case "txt", "text":
		return FormatText, true
	default:
		return "", false
	}
}

// Snapshotter is the read-only view a report needs.
type Snapshotter interface {
	Snapshot() iter.Seq2[string, *cache.Record]
}

// Render formats one point-in-time snapshot of src.
// Text output keeps the classic layout:
//
//	cache(1 records): {
//		123: 123:456
//	}
func Render(src Snapshotter, format Format, algo hashutil.HashAlgo) (string, error) {
	rows := collect(src)

	switch format {
	case FormatText:
		return renderText(rows), nil
	case FormatMarkdown:
		return renderMarkdown(rows, algo)
	case FormatHTML:
		md, err := renderMarkdown(rows, algo)
		if err != nil {
			return "", err
		}
		return renderHTML(md), nil
	default:
		return "", fmt.Errorf("unsupported report format: %s", format)
	}
}

// Fingerprint digests the snapshot as "key\x00info\n" lines in key order.
func Fingerprint(src Snapshotter, algo hashutil.HashAlgo) (string, error) {
	return fingerprint(collect(src), algo)
}

type row struct {
	key  string
	info string
}

func collect(src Snapshotter) []row {
	var rows []row
	for key, record := range src.Snapshot() {
		rows = append(rows, row{key: key, info: record.Info()})
	}
	return rows
}

func fingerprint(rows []row, algo hashutil.HashAlgo) (string, error) {
	h, err := hashutil.NewHasher(algo)
	if err != nil {
		return "", err
	}
	for _, r := range rows {
		fmt.Fprintf(h, "%s\x00%s\n", r.key, r.info)
	}
	return hashutil.Hex(h), nil
}

func renderText(rows []row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cache(%d records): {\n", len(rows))
	for _, r := range rows {
		fmt.Fprintf(&b, "\t%s: %s\n", r.key, r.info)
	}
	b.WriteString("}\n")
	return b.String()
}

func renderMarkdown(rows []row, algo hashutil.HashAlgo) (string, error) {
	sum, err := fingerprint(rows, algo)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Cache (%d records)\n\n", len(rows))
	if len(rows) > 0 {
		b.WriteString("| Domain | Record |\n")
		b.WriteString("|---|---|\n")
		for _, r := range rows {
			fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(r.key), escapeCell(r.info))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Fingerprint (%s): `%s`\n", algo, sum)
	return b.String(), nil
}

func renderHTML(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse([]byte(md))
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return string(markdown.Render(doc, renderer))
}

// cellEscaper keeps a value inside one table cell: pipes would split it,
// line breaks would end the row.
var cellEscaper = strings.NewReplacer(
	"|", `\|`,
	"\r\n", "<br>",
	"\n", "<br>",
	"\r", "<br>",
)

func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}
