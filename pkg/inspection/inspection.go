// Package inspection aggregates pipe network patrol records into problem
// and completion statistics.
package inspection

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jingkaihe/pipeskills/pkg/dataset"
	"github.com/jingkaihe/pipeskills/pkg/logger"
	"github.com/jingkaihe/pipeskills/pkg/report"
	"github.com/pkg/errors"
)

const (
	// DateLayout is the layout of record dates.
	DateLayout = "2006-01-02"
	// StatusNormal marks a patrol point with no findings.
	StatusNormal = "正常"

	defaultType = "其他"
	defaultArea = "未知"
	// fallbackLevel receives problems with a missing or unknown level.
	fallbackLevel = "D"
)

// Levels lists the problem severities from most to least urgent.
var Levels = []string{"A", "B", "C", "D"}

var levelLabels = map[string]string{
	"A": "A-紧急",
	"B": "B-重要",
	"C": "C-一般",
	"D": "D-观察",
}

// Problem is a single finding at a patrol point.
type Problem struct {
	Type        string `json:"type" yaml:"type"`
	ID          string `json:"id" yaml:"id"`
	Level       string `json:"level" yaml:"level"`
	Description string `json:"description" yaml:"description"`
}

// Record is one patrol visit.
type Record struct {
	Date      string    `json:"date" yaml:"date"`
	Area      string    `json:"area" yaml:"area"`
	Inspector string    `json:"inspector" yaml:"inspector"`
	Status    string    `json:"status" yaml:"status"`
	Completed bool      `json:"completed" yaml:"completed"`
	Problems  []Problem `json:"problems" yaml:"problems"`
}

// LoadRecords reads the "inspections" list of a JSON or YAML file.
func LoadRecords(path string) ([]Record, error) {
	return dataset.LoadList[Record](path, "inspections")
}

// FilterByDateRange keeps records dated within [start, end], both given as
// YYYY-MM-DD.
func FilterByDateRange(records []Record, start, end string) ([]Record, error) {
	from, err := time.Parse(DateLayout, start)
	if err != nil {
		return nil, errors.Wrap(err, "invalid start date")
	}
	to, err := time.Parse(DateLayout, end)
	if err != nil {
		return nil, errors.Wrap(err, "invalid end date")
	}

	var out []Record
	for _, r := range records {
		d, err := time.Parse(DateLayout, r.Date)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid record date %q", r.Date)
		}
		if !d.Before(from) && !d.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

// FilterByArea keeps records of the given area.
func FilterByArea(records []Record, area string) []Record {
	return filter(records, func(r Record) bool { return r.Area == area })
}

// FilterByInspector keeps records of the given inspector.
func FilterByInspector(records []Record, inspector string) []Record {
	return filter(records, func(r Record) bool { return r.Inspector == inspector })
}

func filter(records []Record, keep func(Record) bool) []Record {
	var out []Record
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Stats summarises a set of records.
type Stats struct {
	Total          int            `json:"total"`
	Normal         int            `json:"normal"`
	Problem        int            `json:"problem"`
	ProblemRate    float64        `json:"problem_rate"`
	ByLevel        map[string]int `json:"by_level"`
	ByType         map[string]int `json:"by_type"`
	ByArea         map[string]int `json:"by_area"`
	CompletionRate float64        `json:"completion_rate"`
}

// Statistics counts records and their problems. Problems with a missing
// level are filed under D; unknown levels are filed under D with a warning.
func Statistics(ctx context.Context, records []Record) Stats {
	s := Stats{
		Total:   len(records),
		ByLevel: make(map[string]int, len(Levels)),
		ByType:  map[string]int{},
		ByArea:  map[string]int{},
	}
	for _, l := range Levels {
		s.ByLevel[l] = 0
	}
	if len(records) == 0 {
		return s
	}

	var completed int
	for _, r := range records {
		if r.Status == StatusNormal {
			s.Normal++
		}
		if r.Completed {
			completed++
		}
		s.ByArea[orDefault(r.Area, defaultArea)]++

		for _, p := range r.Problems {
			s.ByLevel[level(ctx, r, p)]++
			s.ByType[orDefault(p.Type, defaultType)]++
		}
	}
	s.Problem = s.Total - s.Normal
	s.ProblemRate = rate(s.Problem, s.Total)
	s.CompletionRate = rate(completed, s.Total)
	return s
}

func level(ctx context.Context, r Record, p Problem) string {
	l := strings.ToUpper(strings.TrimSpace(p.Level))
	if l == "" {
		return fallbackLevel
	}
	if _, ok := levelLabels[l]; !ok {
		logger.G(ctx).WithField("date", r.Date).
			WithField("area", r.Area).
			WithField("problem", p.ID).
			Warnf("unknown problem level %q, counting as %s", p.Level, fallbackLevel)
		return fallbackLevel
	}
	return l
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return report.Round(float64(part)/float64(total)*100, 2)
}

// Report renders s as the patrol statistics report generated at now.
func Report(s Stats, now time.Time) string {
	b := report.New("供水管网巡检统计报告", 60, now)

	b.Section("总体统计")
	b.Line("巡检点数：%d 点", s.Total)
	b.Line("正常点数：%d 点", s.Normal)
	b.Line("问题点数：%d 点", s.Problem)
	b.Line("问题率：%s%%", report.Num(s.ProblemRate))
	b.Line("完成率：%s%%", report.Num(s.CompletionRate))
	b.Blank()

	b.Section("问题等级统计")
	for _, l := range Levels {
		b.Line("%s：%d 个", levelLabels[l], s.ByLevel[l])
	}
	b.Blank()

	if len(s.ByType) > 0 {
		b.Section("按设施类型统计")
		for _, kv := range byCountDesc(s.ByType) {
			b.Line("%s：%d 个", kv.key, kv.count)
		}
		b.Blank()
	}

	if len(s.ByArea) > 0 {
		b.Section("按区域统计")
		areas := make([]string, 0, len(s.ByArea))
		for a := range s.ByArea {
			areas = append(areas, a)
		}
		sort.Strings(areas)
		for _, a := range areas {
			b.Line("%s：%d 点", a, s.ByArea[a])
		}
		b.Blank()
	}

	b.Rule()
	return b.String()
}

// ExportJSON writes s to w.
func ExportJSON(w io.Writer, s Stats) error {
	return report.WriteJSON(w, s)
}

type keyCount struct {
	key   string
	count int
}

// byCountDesc orders map entries by count, largest first, then by key.
func byCountDesc(m map[string]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, v := range m {
		out = append(out, keyCount{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	return out
}
