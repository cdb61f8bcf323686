// Package asset keeps pipe network equipment ledger statistics: straight
// line depreciation, grouping by type, health and age, overdue maintenance
// and replacement candidates.
package asset

import (
	"context"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jingkaihe/pipeskills/pkg/dataset"
	"github.com/jingkaihe/pipeskills/pkg/logger"
	"github.com/jingkaihe/pipeskills/pkg/report"
)

const (
	DateLayout = "2006-01-02"

	// DefaultUsefulLife applies when an asset has no useful life recorded.
	DefaultUsefulLife = 30.0

	DefaultOverdueDays       = 30
	DefaultReplacementMinAge = 25.0

	// HealthReplace is the health grade that always calls for replacement.
	HealthReplace = "D"

	defaultType = "未知"
)

// HealthGrades lists health grades from best to worst.
var HealthGrades = []string{"A", "B", "C", "D"}

var healthLabels = map[string]string{
	"A": "A-优秀",
	"B": "B-良好",
	"C": "C-一般",
	"D": "D-需关注",
}

// Asset is one ledger entry. Values are in yuan and ages in years.
type Asset struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	Type            string   `json:"type" yaml:"type"`
	Material        string   `json:"material,omitempty" yaml:"material"`
	OriginalValue   float64  `json:"original_value" yaml:"original_value"`
	UsefulLife      *float64 `json:"useful_life,omitempty" yaml:"useful_life"`
	Age             float64  `json:"age" yaml:"age"`
	Health          string   `json:"health" yaml:"health"`
	NextMaintenance string   `json:"next_maintenance,omitempty" yaml:"next_maintenance"`
	NetValue        *float64 `json:"net_value,omitempty" yaml:"net_value"`
}

// Depreciate returns the straight line net value of a, rounded to cents.
// A non-positive useful life leaves the original value untouched.
func Depreciate(a Asset) float64 {
	life := DefaultUsefulLife
	if a.UsefulLife != nil {
		life = *a.UsefulLife
	}
	if life <= 0 {
		return report.Round(a.OriginalValue, 2)
	}
	net := a.OriginalValue - a.OriginalValue/life*a.Age
	return report.Round(math.Max(0, net), 2)
}

// Net returns the recorded net value, or the depreciated value when none
// was recorded.
func (a Asset) Net() float64 {
	if a.NetValue != nil {
		return *a.NetValue
	}
	return Depreciate(a)
}

// Grade returns the upper-cased health grade; a missing grade counts as D.
func (a Asset) Grade() string {
	g := strings.ToUpper(strings.TrimSpace(a.Health))
	if g == "" {
		return HealthReplace
	}
	return g
}

// LoadAssets reads the "assets" list of a JSON or YAML file and fills in
// missing net values.
func LoadAssets(path string) ([]Asset, error) {
	assets, err := dataset.LoadList[Asset](path, "assets")
	if err != nil {
		return nil, err
	}
	for i := range assets {
		if assets[i].NetValue == nil {
			net := Depreciate(assets[i])
			assets[i].NetValue = &net
		}
	}
	return assets, nil
}

// Summary holds ledger totals.
type Summary struct {
	TotalCount       int     `json:"total_count"`
	TotalValue       float64 `json:"total_value"`
	NetValue         float64 `json:"net_value"`
	DepreciationRate float64 `json:"depreciation_rate"`
}

// Summarize totals original and net values. DepreciationRate is the share of
// original value already written off, in percent.
func Summarize(assets []Asset) Summary {
	s := Summary{TotalCount: len(assets)}
	for _, a := range assets {
		s.TotalValue += a.OriginalValue
		s.NetValue += a.Net()
	}
	if s.TotalValue > 0 {
		s.DepreciationRate = (s.TotalValue - s.NetValue) / s.TotalValue * 100
	}
	return s
}

// TypeStats aggregates the assets of one type.
type TypeStats struct {
	Count         int     `json:"count"`
	OriginalValue float64 `json:"original_value"`
	NetValue      float64 `json:"net_value"`
	AvgAge        float64 `json:"avg_age"`
}

// GroupByType aggregates assets per type; assets without one count as 未知.
func GroupByType(assets []Asset) map[string]TypeStats {
	groups := map[string]TypeStats{}
	ages := map[string]float64{}
	for _, a := range assets {
		key := a.Type
		if strings.TrimSpace(key) == "" {
			key = defaultType
		}
		g := groups[key]
		g.Count++
		g.OriginalValue += a.OriginalValue
		g.NetValue += a.Net()
		groups[key] = g
		ages[key] += a.Age
	}
	for key, g := range groups {
		g.AvgAge = report.Round(ages[key]/float64(g.Count), 1)
		g.OriginalValue = report.Round(g.OriginalValue, 2)
		g.NetValue = report.Round(g.NetValue, 2)
		groups[key] = g
	}
	return groups
}

// HealthStats aggregates the assets of one health grade.
type HealthStats struct {
	Count      int     `json:"count"`
	TotalValue float64 `json:"total_value"`
	Percentage float64 `json:"percentage"`
}

// GroupByHealth aggregates assets per health grade. Only grades that occur
// are present.
func GroupByHealth(assets []Asset) map[string]HealthStats {
	groups := map[string]HealthStats{}
	for _, a := range assets {
		g := groups[a.Grade()]
		g.Count++
		g.TotalValue += a.Net()
		groups[a.Grade()] = g
	}
	for key, g := range groups {
		g.Percentage = report.Percent(g.Count, len(assets))
		g.TotalValue = report.Round(g.TotalValue, 2)
		groups[key] = g
	}
	return groups
}

// AgeBand counts assets whose age falls in [Min, Max).
type AgeBand struct {
	Range string  `json:"range"`
	Min   float64 `json:"-"`
	Max   float64 `json:"-"`
	Count int     `json:"count"`
}

// AgeBands returns the fixed age bands, youngest first.
func AgeBands(assets []Asset) []AgeBand {
	bands := []AgeBand{
		{Range: "0-5年", Min: math.Inf(-1), Max: 5},
		{Range: "5-10年", Min: 5, Max: 10},
		{Range: "10-20年", Min: 10, Max: 20},
		{Range: "20-30年", Min: 20, Max: 30},
		{Range: "30年以上", Min: 30, Max: math.Inf(1)},
	}
	for _, a := range assets {
		for i := range bands {
			if a.Age >= bands[i].Min && a.Age < bands[i].Max {
				bands[i].Count++
				break
			}
		}
	}
	return bands
}

// OverdueAsset is an asset whose scheduled maintenance is late.
type OverdueAsset struct {
	Asset
	DaysOverdue int `json:"days_overdue"`
}

// MaintenanceOverdue returns assets whose next maintenance date is more than
// days in the past. Assets with an unparsable date are skipped with a
// warning.
func MaintenanceOverdue(ctx context.Context, assets []Asset, days int, now time.Time) []OverdueAsset {
	var out []OverdueAsset
	for _, a := range assets {
		if a.NextMaintenance == "" {
			continue
		}
		due, err := time.ParseInLocation(DateLayout, a.NextMaintenance, now.Location())
		if err != nil {
			logger.G(ctx).WithField("asset", a.ID).
				Warnf("skipping unparsable maintenance date %q", a.NextMaintenance)
			continue
		}
		late := int(math.Floor(now.Sub(due).Hours() / 24))
		if late > days {
			out = append(out, OverdueAsset{Asset: a, DaysOverdue: late})
		}
	}
	return out
}

// ReplacementCandidates returns assets at least minAge years old or graded D.
func ReplacementCandidates(assets []Asset, minAge float64) []Asset {
	var out []Asset
	for _, a := range assets {
		if a.Age >= minAge || a.Grade() == HealthReplace {
			out = append(out, a)
		}
	}
	return out
}

// Options tunes overdue and replacement thresholds.
type Options struct {
	OverdueDays       int
	ReplacementMinAge float64
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{OverdueDays: DefaultOverdueDays, ReplacementMinAge: DefaultReplacementMinAge}
}

// Export is the JSON document written by ExportJSON.
type Export struct {
	Timestamp             string                 `json:"timestamp"`
	Summary               Summary                `json:"summary"`
	ByType                map[string]TypeStats   `json:"by_type"`
	ByHealth              map[string]HealthStats `json:"by_health"`
	ByAgeRange            []AgeBand              `json:"by_age_range"`
	OverdueMaintenance    int                    `json:"overdue_maintenance"`
	ReplacementCandidates int                    `json:"replacement_candidates"`
}

// BuildExport computes every statistic at now.
func BuildExport(ctx context.Context, assets []Asset, opts Options, now time.Time) *Export {
	s := Summarize(assets)
	s.TotalValue = report.Round(s.TotalValue, 2)
	s.NetValue = report.Round(s.NetValue, 2)
	s.DepreciationRate = report.Round(s.DepreciationRate, 2)
	return &Export{
		Timestamp:             now.Format(time.RFC3339),
		Summary:               s,
		ByType:                GroupByType(assets),
		ByHealth:              GroupByHealth(assets),
		ByAgeRange:            AgeBands(assets),
		OverdueMaintenance:    len(MaintenanceOverdue(ctx, assets, opts.OverdueDays, now)),
		ReplacementCandidates: len(ReplacementCandidates(assets, opts.ReplacementMinAge)),
	}
}

// ExportJSON writes BuildExport's result to w.
func ExportJSON(ctx context.Context, w io.Writer, assets []Asset, opts Options, now time.Time) error {
	return report.WriteJSON(w, BuildExport(ctx, assets, opts, now))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
