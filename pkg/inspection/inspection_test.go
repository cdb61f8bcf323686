package inspection

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

func sampleRecords() []Record {
	return []Record{
		{
			Date: "2024-01-15", Area: "东区", Inspector: "张三", Status: "有问题", Completed: true,
			Problems: []Problem{
				{Type: "阀门", ID: "V-001", Level: "A", Description: "阀门无法关闭"},
				{Type: "井盖", ID: "M-005", Level: "C", Description: "标识不清"},
			},
		},
		{Date: "2024-01-15", Area: "西区", Inspector: "李四", Status: "正常", Completed: true},
		{
			Date: "2024-01-16", Area: "东区", Inspector: "张三", Status: "有问题", Completed: true,
			Problems: []Problem{{Type: "水表", ID: "M-012", Level: "B", Description: "水表停走"}},
		},
	}
}

func TestStatistics(t *testing.T) {
	s := Statistics(context.Background(), sampleRecords())

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Normal)
	assert.Equal(t, 2, s.Problem)
	assert.Equal(t, 66.67, s.ProblemRate)
	assert.Equal(t, 100.0, s.CompletionRate)
	assert.Equal(t, map[string]int{"A": 1, "B": 1, "C": 1, "D": 0}, s.ByLevel)
	assert.Equal(t, map[string]int{"阀门": 1, "井盖": 1, "水表": 1}, s.ByType)
	assert.Equal(t, map[string]int{"东区": 2, "西区": 1}, s.ByArea)
}

func TestStatistics_Empty(t *testing.T) {
	s := Statistics(context.Background(), nil)
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 0.0, s.ProblemRate)
	assert.Equal(t, map[string]int{"A": 0, "B": 0, "C": 0, "D": 0}, s.ByLevel)
	assert.Empty(t, s.ByType)
}

func TestStatistics_Defaults(t *testing.T) {
	l, hook := logtest.NewNullLogger()
	ctx := logger.WithLogger(context.Background(), logrus.NewEntry(l))

	records := []Record{{
		Date:   "2024-01-17",
		Status: "有问题",
		Problems: []Problem{
			{ID: "P-1"},
			{ID: "P-2", Type: "管道", Level: "b"},
			{ID: "P-3", Type: "管道", Level: "Z"},
		},
	}}
	s := Statistics(ctx, records)

	assert.Equal(t, map[string]int{"A": 0, "B": 1, "C": 0, "D": 2}, s.ByLevel)
	assert.Equal(t, map[string]int{"其他": 1, "管道": 2}, s.ByType)
	assert.Equal(t, map[string]int{"未知": 1}, s.ByArea)
	assert.Equal(t, 0.0, s.CompletionRate)

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Contains(t, entry.Message, `unknown problem level "Z"`)
	assert.Equal(t, "P-3", entry.Data["problem"])
}

func TestFilters(t *testing.T) {
	records := sampleRecords()

	got, err := FilterByDateRange(records, "2024-01-16", "2024-01-16")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2024-01-16", got[0].Date)

	got, err = FilterByDateRange(records, "2024-01-15", "2024-01-16")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = FilterByDateRange(records, "15/01/2024", "2024-01-16")
	assert.ErrorContains(t, err, "invalid start date")

	_, err = FilterByDateRange([]Record{{Date: "yesterday"}}, "2024-01-15", "2024-01-16")
	assert.ErrorContains(t, err, `invalid record date "yesterday"`)

	assert.Len(t, FilterByArea(records, "东区"), 2)
	assert.Empty(t, FilterByArea(records, "北区"))
	assert.Len(t, FilterByInspector(records, "李四"), 1)
}

func TestReport(t *testing.T) {
	now := time.Date(2024, 1, 16, 18, 0, 0, 0, time.UTC)
	out := Report(Statistics(context.Background(), sampleRecords()), now)

	assert.Contains(t, out, "供水管网巡检统计报告")
	assert.Contains(t, out, "生成时间：2024-01-16 18:00:00")
	assert.Contains(t, out, "问题率：66.67%")
	assert.Contains(t, out, "完成率：100%")
	assert.Contains(t, out, "A-紧急：1 个")
	assert.Contains(t, out, "D-观察：0 个")
	assert.Contains(t, out, "东区：2 点")
	assert.Less(t, bytes.Index([]byte(out), []byte("东区")), bytes.Index([]byte(out), []byte("西区")))
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, Statistics(context.Background(), sampleRecords())))

	var got Stats
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 3, got.Total)
	assert.Contains(t, buf.String(), `"阀门": 1`)
}

func TestLoadRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inspections.json")
	content := `{"inspections": [{"date": "2024-01-15", "area": "东区", "status": "正常", "completed": true}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err := LoadRecords(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "东区", records[0].Area)
	assert.True(t, records[0].Completed)
}
