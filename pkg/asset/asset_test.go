package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jingkaihe/pipeskills/pkg/logger"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

func life(v float64) *float64 { return &v }

func sampleAssets() []Asset {
	assets := []Asset{
		{ID: "V-001", Name: "DN500闸阀", Type: "阀门", Material: "球墨铸铁", OriginalValue: 45000, UsefulLife: life(30), Age: 8, Health: "B", NextMaintenance: "2024-02-01"},
		{ID: "P-001", Name: "PE管DN200", Type: "管道", Material: "PE", OriginalValue: 12000, UsefulLife: life(50), Age: 3, Health: "A", NextMaintenance: "2024-06-15"},
		{ID: "V-002", Name: "DN300蝶阀", Type: "阀门", Material: "球墨铸铁", OriginalValue: 28000, UsefulLife: life(30), Age: 28, Health: "D", NextMaintenance: "2023-12-01"},
		{ID: "M-001", Name: "离心泵200QJ", Type: "水泵", Material: "不锈钢", OriginalValue: 150000, UsefulLife: life(15), Age: 12, Health: "C", NextMaintenance: "2024-01-20"},
	}
	for i := range assets {
		net := Depreciate(assets[i])
		assets[i].NetValue = &net
	}
	return assets
}

func TestDepreciate(t *testing.T) {
	tests := []struct {
		name     string
		asset    Asset
		expected float64
	}{
		{"straight line", Asset{OriginalValue: 45000, UsefulLife: life(30), Age: 8}, 33000},
		{"rounded to cents", Asset{OriginalValue: 28000, UsefulLife: life(30), Age: 28}, 1866.67},
		{"default life", Asset{OriginalValue: 3000, Age: 15}, 1500},
		{"fully depreciated", Asset{OriginalValue: 1000, UsefulLife: life(10), Age: 12}, 0},
		{"no useful life", Asset{OriginalValue: 1000, UsefulLife: life(0), Age: 12}, 1000},
		{"negative useful life", Asset{OriginalValue: 1000, UsefulLife: life(-5), Age: 12}, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Depreciate(tt.asset))
		})
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleAssets())
	assert.Equal(t, 4, s.TotalCount)
	assert.Equal(t, 235000.0, s.TotalValue)
	assert.InDelta(t, 76146.67, s.NetValue, 1e-6)
	assert.InDelta(t, 67.5972, s.DepreciationRate, 1e-3)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestGroupByType(t *testing.T) {
	groups := GroupByType(sampleAssets())
	require.Len(t, groups, 3)
	assert.Equal(t, TypeStats{Count: 2, OriginalValue: 73000, NetValue: 34866.67, AvgAge: 18}, groups["阀门"])
	assert.Equal(t, 1, groups["水泵"].Count)

	groups = GroupByType([]Asset{{OriginalValue: 10, Age: 1}})
	assert.Equal(t, 1, groups["未知"].Count)
}

func TestGroupByHealth(t *testing.T) {
	groups := GroupByHealth(sampleAssets())
	require.Len(t, groups, 4)
	assert.Equal(t, HealthStats{Count: 1, TotalValue: 1866.67, Percentage: 25}, groups["D"])

	groups = GroupByHealth([]Asset{{Health: "a"}, {}, {Health: "D"}})
	assert.Equal(t, 1, groups["A"].Count)
	assert.Equal(t, 2, groups["D"].Count)
	assert.Equal(t, 66.7, groups["D"].Percentage)
	_, ok := groups["B"]
	assert.False(t, ok)
}

func TestAgeBands(t *testing.T) {
	bands := AgeBands(append(sampleAssets(), Asset{Age: 30}, Asset{Age: 5}))
	counts := map[string]int{}
	var order []string
	for _, b := range bands {
		counts[b.Range] = b.Count
		order = append(order, b.Range)
	}
	assert.Equal(t, []string{"0-5年", "5-10年", "10-20年", "20-30年", "30年以上"}, order)
	assert.Equal(t, map[string]int{"0-5年": 1, "5-10年": 2, "10-20年": 1, "20-30年": 1, "30年以上": 1}, counts)
}

func TestMaintenanceOverdue(t *testing.T) {
	overdue := MaintenanceOverdue(context.Background(), sampleAssets(), DefaultOverdueDays, now)
	require.Len(t, overdue, 3)
	days := map[string]int{}
	for _, o := range overdue {
		days[o.ID] = o.DaysOverdue
	}
	assert.Equal(t, map[string]int{"V-001": 43, "V-002": 105, "M-001": 55}, days)

	overdue = MaintenanceOverdue(context.Background(), sampleAssets(), 60, now)
	require.Len(t, overdue, 1)
	assert.Equal(t, "V-002", overdue[0].ID)
}

func TestMaintenanceOverdue_SkipsBadDates(t *testing.T) {
	l, hook := logtest.NewNullLogger()
	ctx := logger.WithLogger(context.Background(), logrus.NewEntry(l))

	assets := []Asset{
		{ID: "X-1", NextMaintenance: "next spring"},
		{ID: "X-2"},
		{ID: "X-3", NextMaintenance: "2023-01-01"},
	}
	overdue := MaintenanceOverdue(ctx, assets, 30, now)
	require.Len(t, overdue, 1)
	assert.Equal(t, "X-3", overdue[0].ID)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "X-1", hook.LastEntry().Data["asset"])
}

func TestReplacementCandidates(t *testing.T) {
	candidates := ReplacementCandidates(sampleAssets(), DefaultReplacementMinAge)
	require.Len(t, candidates, 1)
	assert.Equal(t, "V-002", candidates[0].ID)

	candidates = ReplacementCandidates([]Asset{{ID: "old", Age: 25, Health: "A"}, {ID: "ungraded", Age: 1}}, 25)
	require.Len(t, candidates, 2)

	assert.Len(t, ReplacementCandidates(sampleAssets(), 10), 2)
}

func TestReport(t *testing.T) {
	out := Report(context.Background(), sampleAssets(), DefaultOptions(), now)

	assert.Contains(t, out, "供水管网设备资产统计报告")
	assert.Contains(t, out, "资产总数：4 台/个")
	assert.Contains(t, out, "资产原值：235,000.00 元")
	assert.Contains(t, out, "资产净值：76,146.67 元")
	assert.Contains(t, out, "折旧率：67.60%")
	assert.Contains(t, out, "7.30")
	assert.Contains(t, out, "D-需关注：1 台 (25%) - 净值 1,866.67 元")
	assert.Contains(t, out, "30年以上：0 台 (0.0%)")
	assert.Contains(t, out, "DN300蝶阀 - 超期 105 天")
	assert.Contains(t, out, "DN300蝶阀 - 使用年限 28 年 - 健康等级 D")
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportJSON(context.Background(), &buf, sampleAssets(), DefaultOptions(), now))

	var exp Export
	require.NoError(t, json.Unmarshal(buf.Bytes(), &exp))
	assert.Equal(t, Summary{TotalCount: 4, TotalValue: 235000, NetValue: 76146.67, DepreciationRate: 67.6}, exp.Summary)
	assert.Equal(t, 3, exp.OverdueMaintenance)
	assert.Equal(t, 1, exp.ReplacementCandidates)
	require.Len(t, exp.ByAgeRange, 5)
	assert.Equal(t, "0-5年", exp.ByAgeRange[0].Range)
}

func TestLoadAssets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.json")
	content := `{"assets": [
		{"id": "V-001", "type": "阀门", "original_value": 45000, "useful_life": 30, "age": 8},
		{"id": "V-009", "type": "阀门", "original_value": 45000, "age": 8, "net_value": 40000}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	assets, err := LoadAssets(path)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	require.NotNil(t, assets[0].NetValue)
	assert.Equal(t, 33000.0, *assets[0].NetValue)
	assert.Equal(t, 40000.0, assets[1].Net())
}
