package catalog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	udiff "github.com/aymanbagabas/go-udiff"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// SkillsHeading is the heading of the generated skills table section.
const SkillsHeading = "Available Skills"

// skillsHeadingAliases are headings accepted as the skills table section.
var skillsHeadingAliases = []string{SkillsHeading, "可用技能", "Skills"}

var tableHeader = []string{"Name", "Description", "Trigger Words", "Artifact"}

// ErrNoFrontmatter is returned when the document has no YAML frontmatter.
var ErrNoFrontmatter = errors.New("catalog document has no frontmatter")

type frontmatter struct {
	Skills []SkillEntry `yaml:"skills" mapstructure:"skills"`
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(meta.Meta, extension.Table))
}

// Load reads and parses the catalog document at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read catalog document")
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	c.Path = path
	return c, nil
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	pctx := parser.NewContext()
	doc := newMarkdown().Parser().Parse(text.NewReader(data), parser.WithContext(pctx))

	metaData, err := meta.TryGet(pctx)
	if err != nil {
		return nil, errors.Wrap(err, "invalid frontmatter")
	}
	if metaData == nil {
		return nil, ErrNoFrontmatter
	}

	entries, err := decodeEntries(metaData["skills"])
	if err != nil {
		return nil, err
	}

	c := &Catalog{Entries: entries}
	parseBody(c, doc, data, frontmatterEnd(data))
	return c, nil
}

func decodeEntries(raw interface{}) ([]SkillEntry, error) {
	if raw == nil {
		return nil, nil
	}
	var entries []SkillEntry
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &entries,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create frontmatter decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "invalid skills list")
	}
	if len(entries) == 0 {
		return nil, nil
	}
	for i := range entries {
		entries[i].UseCases = nilIfEmpty(entries[i].UseCases)
		entries[i].TriggerWords = nilIfEmpty(entries[i].TriggerWords)
	}
	return entries, nil
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

// parseBody walks the top-level blocks and slices the source between
// headings so section bodies keep their original markdown. Only the first
// skills heading holds the generated table; later ones are plain sections.
func parseBody(c *Catalog, doc ast.Node, src []byte, bodyStart int) {
	introStart := bodyStart
	introEnd := -1

	var current *Section
	currentStart := 0

	inSkills, skillsSeen := false, false
	skillsStart, tableStart, tableEnd := 0, -1, -1

	closeSection := func(end int) {
		if current != nil {
			current.Body = trimBlock(string(src[currentStart:end]))
			c.Sections = append(c.Sections, *current)
			current = nil
		}
		if inSkills {
			if tableStart < 0 {
				c.SkillsNote = trimBlock(string(src[skillsStart:end]))
			} else {
				c.SkillsNote = trimBlock(string(src[skillsStart:tableStart]))
				c.SkillsFooter = trimBlock(string(src[tableEnd:end]))
			}
			inSkills = false
		}
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if node.Lines().Len() == 0 {
				continue
			}
			start := lineStart(src, node.Lines().At(0).Start)
			raw := headingSource(node, src)
			switch node.Level {
			case 1:
				if c.Title == "" && introEnd < 0 && current == nil && !skillsSeen {
					c.Title = raw
					c.Preamble = trimBlock(string(src[bodyStart:start]))
					introStart = headingEnd(node, src)
				}
			case 2:
				if introEnd < 0 {
					introEnd = start
				}
				closeSection(start)
				if !skillsSeen && isSkillsHeading(raw) {
					inSkills, skillsSeen = true, true
					skillsStart = headingEnd(node, src)
				} else {
					current = &Section{Heading: raw}
					currentStart = headingEnd(node, src)
				}
			}
		case *east.Table:
			if inSkills && tableStart < 0 {
				if from, to, ok := tableSpan(node, src); ok {
					tableStart, tableEnd = from, to
					c.tableNames = tableNames(node, src)
					if c.tableNames == nil {
						c.tableNames = []string{}
					}
				}
			}
		}
	}

	if introEnd < 0 {
		introEnd = len(src)
	}
	closeSection(len(src))
	if introStart < introEnd {
		c.Intro = trimBlock(string(src[introStart:introEnd]))
	}
}

// tableSpan returns the source range of the table, from the start of the
// header line to the end of the last row, or of the delimiter row when the
// table has no body.
func tableSpan(table *east.Table, src []byte) (int, int, bool) {
	from, to, headerStop := -1, -1, -1
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			lines := cell.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				if from < 0 || seg.Start < from {
					from = seg.Start
				}
				if seg.Stop > to {
					to = seg.Stop
				}
			}
		}
		if _, ok := row.(*east.TableHeader); ok {
			headerStop = to
		}
	}
	if from < 0 {
		return 0, 0, false
	}
	end := lineEnd(src, to)
	if to == headerStop {
		end = lineEnd(src, end)
	}
	return lineStart(src, from), end, true
}

func isSkillsHeading(heading string) bool {
	for _, alias := range skillsHeadingAliases {
		if strings.EqualFold(strings.TrimSpace(heading), alias) {
			return true
		}
	}
	return false
}

func tableNames(table *east.Table, src []byte) []string {
	var names []string
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		if _, ok := row.(*east.TableRow); !ok {
			continue
		}
		cell := row.FirstChild()
		if cell == nil {
			continue
		}
		names = append(names, cellText(cell, src))
	}
	return names
}

func cellText(cell ast.Node, src []byte) string {
	if lines := cell.Lines(); lines != nil && lines.Len() > 0 {
		var b strings.Builder
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		return unescapeCell(strings.TrimSpace(b.String()))
	}
	var b strings.Builder
	_ = ast.Walk(cell, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return unescapeCell(strings.TrimSpace(b.String()))
}

func headingSource(h *ast.Heading, src []byte) string {
	lines := h.Lines()
	first := lines.At(0)
	last := lines.At(lines.Len() - 1)
	return strings.TrimSpace(string(src[first.Start:last.Stop]))
}

// headingEnd returns the offset just past the heading, including the
// underline of a setext heading.
func headingEnd(h *ast.Heading, src []byte) int {
	lines := h.Lines()
	end := lineEnd(src, lines.At(lines.Len()-1).Stop)
	first := lineStart(src, lines.At(0).Start)
	if strings.HasPrefix(strings.TrimLeft(string(src[first:end]), " "), "#") {
		return end
	}
	next := lineEnd(src, end)
	if underline := strings.TrimSpace(string(src[end:next])); underline != "" && strings.Trim(underline, "=-") == "" {
		return next
	}
	return end
}

func lineStart(src []byte, pos int) int {
	if pos > len(src) {
		pos = len(src)
	}
	return bytes.LastIndexByte(src[:pos], '\n') + 1
}

func lineEnd(src []byte, pos int) int {
	if pos >= len(src) {
		return len(src)
	}
	i := bytes.IndexByte(src[pos:], '\n')
	if i < 0 {
		return len(src)
	}
	return pos + i + 1
}

// frontmatterEnd returns the offset of the first byte after the closing
// frontmatter delimiter, or 0 when the document has none.
func frontmatterEnd(src []byte) int {
	if !bytes.HasPrefix(src, []byte("---")) {
		return 0
	}
	pos := lineEnd(src, 0)
	for pos < len(src) {
		next := lineEnd(src, pos)
		if strings.TrimSpace(string(src[pos:next])) == "---" {
			return next
		}
		pos = next
	}
	return 0
}

func trimBlock(s string) string {
	return strings.TrimRight(strings.TrimLeft(s, "\n"), " \t\r\n")
}

// Render writes the canonical form of the catalog document.
func Render(c *Catalog) ([]byte, error) {
	var buf bytes.Buffer

	var fm bytes.Buffer
	enc := yaml.NewEncoder(&fm)
	enc.SetIndent(2)
	if err := enc.Encode(frontmatter{Skills: c.Entries}); err != nil {
		return nil, errors.Wrap(err, "failed to encode frontmatter")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to encode frontmatter")
	}

	buf.WriteString("---\n")
	buf.Write(fm.Bytes())
	buf.WriteString("---\n")

	if c.Preamble != "" {
		fmt.Fprintf(&buf, "\n%s\n", c.Preamble)
	}
	if c.Title != "" {
		fmt.Fprintf(&buf, "\n# %s\n", c.Title)
	}
	if c.Intro != "" {
		fmt.Fprintf(&buf, "\n%s\n", c.Intro)
	}

	fmt.Fprintf(&buf, "\n## %s\n\n", SkillsHeading)
	if c.SkillsNote != "" {
		fmt.Fprintf(&buf, "%s\n\n", c.SkillsNote)
	}
	writeTable(&buf, c.Entries)
	if c.SkillsFooter != "" {
		fmt.Fprintf(&buf, "\n%s\n", c.SkillsFooter)
	}

	for _, s := range c.Sections {
		fmt.Fprintf(&buf, "\n## %s\n", s.Heading)
		if s.Body != "" {
			fmt.Fprintf(&buf, "\n%s\n", s.Body)
		}
	}
	return buf.Bytes(), nil
}

func writeTable(buf *bytes.Buffer, entries []SkillEntry) {
	buf.WriteString("| " + strings.Join(tableHeader, " | ") + " |\n")
	seps := make([]string, len(tableHeader))
	for i, h := range tableHeader {
		seps[i] = strings.Repeat("-", len(h))
	}
	buf.WriteString("| " + strings.Join(seps, " | ") + " |\n")

	for _, e := range entries {
		artifact := ""
		if e.ArtifactPath != "" {
			artifact = "`" + strings.ReplaceAll(e.ArtifactPath, "`", "") + "`"
		}
		fmt.Fprintf(buf, "| %s | %s | %s | %s |\n",
			escapeCell(e.Name),
			escapeCell(e.Description),
			escapeCell(strings.Join(e.TriggerWords, ", ")),
			artifact,
		)
	}
}

const cellEscapes = "\\`*_[]<>|#!"

func escapeCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(cellEscapes, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unescapeCell(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && strings.IndexByte(cellEscapes, s[i+1]) >= 0 {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Write renders the catalog to path while holding the file lock.
func Write(path string, c *Catalog) error {
	data, err := Render(c)
	if err != nil {
		return err
	}
	if err := lockedfile.Write(path, bytes.NewReader(data), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// Diff returns a unified diff from the document at path to its canonical
// rendering. It is empty when the document is already formatted.
func Diff(path string, c *Catalog) (string, error) {
	current, err := lockedfile.Read(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", path)
	}
	canonical, err := Render(c)
	if err != nil {
		return "", err
	}
	if bytes.Equal(current, canonical) {
		return "", nil
	}
	name := filepath.ToSlash(path)
	return udiff.Unified(name, name+" (formatted)", string(current), string(canonical)), nil
}
