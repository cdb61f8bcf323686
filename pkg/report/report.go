// Package report builds the plain-text statistics reports printed by the
// analysis tools and holds the numeric helpers they share.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"
)

// TimestampLayout is the layout of report generation times.
const TimestampLayout = "2006-01-02 15:04:05"

// Builder accumulates report lines.
type Builder struct {
	lines []string
	width int
}

// New starts a report with a banner, the title and, when now is non-zero,
// the generation time.
func New(title string, width int, now time.Time) *Builder {
	b := &Builder{width: width}
	b.Rule()
	b.lines = append(b.lines, title)
	b.Rule()
	if !now.IsZero() {
		b.lines = append(b.lines, "生成时间："+now.Format(TimestampLayout))
		b.Blank()
	}
	return b
}

// Rule appends a full-width "=" rule.
func (b *Builder) Rule() {
	b.lines = append(b.lines, strings.Repeat("=", b.width))
}

// Divider appends a full-width "-" rule.
func (b *Builder) Divider() {
	b.lines = append(b.lines, strings.Repeat("-", b.width))
}

// Section appends a 【name】 header.
func (b *Builder) Section(name string) {
	b.lines = append(b.lines, "【"+name+"】")
}

// Line appends an indented formatted line.
func (b *Builder) Line(format string, args ...interface{}) {
	b.lines = append(b.lines, "  "+fmt.Sprintf(format, args...))
}

// Blank appends an empty line.
func (b *Builder) Blank() {
	b.lines = append(b.lines, "")
}

// Table appends a bordered table. Columns after the first are right
// aligned; widths account for wide CJK runes.
func (b *Builder) Table(headers []string, rows [][]string) {
	base := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(_, col int) lipgloss.Style {
			if col == 0 {
				return base
			}
			return base.Align(lipgloss.Right)
		})
	b.lines = append(b.lines, strings.Split(t.String(), "\n")...)
}

// String joins the lines with newlines.
func (b *Builder) String() string {
	return strings.Join(b.lines, "\n")
}

// Round rounds x to the given number of decimal places, half away from zero.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// Percent returns part/total*100 rounded to one decimal, or 0 when total is 0.
func Percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return Round(float64(part)/float64(total)*100, 1)
}

// Num formats x with the fewest digits that represent it.
func Num(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

// Money formats x with thousands separators and two decimals.
func Money(x float64) string {
	s := strconv.FormatFloat(math.Abs(x), 'f', 2, 64)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	if x < 0 {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}

// WriteJSON writes v as indented JSON without HTML escaping.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode statistics")
	}
	return nil
}
