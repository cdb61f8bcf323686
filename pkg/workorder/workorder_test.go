package workorder

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 1, 18, 12, 0, 0, 0, time.UTC)

func sampleOrders() []Order {
	return []Order{
		{
			OrderID: "WO-20240115-EMG-001", Type: "抢修", Status: "已完成",
			CreatedDate: "2024-01-15", CreatedTime: "09:30", CompletedDate: "2024-01-15",
			Area: "东区", Staff: "刘师傅", FaultType: "管道爆裂", DurationHours: 5.5, Cost: 2500,
		},
		{
			OrderID: "WO-20240115-REP-002", Type: "维修", Status: "已完成",
			CreatedDate: "2024-01-15", CreatedTime: "10:00", CompletedDate: "2024-01-16",
			Area: "西区", Staff: "张师傅", FaultType: "阀门故障", DurationHours: 8, Cost: 800,
		},
		{
			OrderID: "WO-20240116-REP-003", Type: "维修", Status: "进行中",
			CreatedDate: "2024-01-16", CreatedTime: "08:30",
			Area: "东区", Staff: "刘师傅", FaultType: "水表故障",
		},
		{
			OrderID: "WO-20240117-INS-004", Type: "巡检", Status: "已完成",
			CreatedDate: "2024-01-17", CreatedTime: "09:00", CompletedDate: "2024-01-17",
			Area: "南区", Staff: "小李", FaultType: "无", DurationHours: 4,
		},
	}
}

func TestGroupByType(t *testing.T) {
	groups := GroupByType(sampleOrders())
	require.Len(t, groups, 3)

	assert.Equal(t, TypeStats{Count: 1, Completed: 1, CompletionRate: 100, AvgDuration: 5.5, TotalDuration: 5.5, TotalCost: 2500}, groups["抢修"])
	assert.Equal(t, TypeStats{Count: 2, Completed: 1, CompletionRate: 50, AvgDuration: 8, TotalDuration: 8, TotalCost: 800}, groups["维修"])
	assert.Equal(t, 4.0, groups["巡检"].AvgDuration)

	groups = GroupByType([]Order{{Status: "进行中", DurationHours: 3}})
	assert.Equal(t, TypeStats{Count: 1, TotalDuration: 3}, groups["其他"])
}

func TestGroupByAreaAndFault(t *testing.T) {
	orders := append(sampleOrders(), Order{OrderID: "WO-X"})
	assert.Equal(t, map[string]int{"东区": 2, "西区": 1, "南区": 1, "未知": 1}, GroupByArea(orders))

	faults := GroupByFaultType(orders)
	assert.Equal(t, 1, faults["管道爆裂"])
	assert.Equal(t, 1, faults["其他"])
}

func TestPersonnelPerformance(t *testing.T) {
	perf := PersonnelPerformance(sampleOrders())
	require.Len(t, perf, 3)

	liu := perf["刘师傅"]
	assert.Equal(t, 2, liu.TotalOrders)
	assert.Equal(t, 1, liu.Completed)
	assert.Equal(t, 50.0, liu.CompletionRate)
	assert.Equal(t, 5.5, liu.AvgDuration)
	assert.Equal(t, 5.5, liu.MinDuration)
	assert.Equal(t, 5.5, liu.MaxDuration)

	perf = PersonnelPerformance([]Order{
		{Staff: "王工", Status: "已完成", DurationHours: 2},
		{Staff: "王工", Status: "已完成", DurationHours: 6},
		{Staff: "王工", Status: "进行中", DurationHours: 100},
		{Status: "进行中"},
	})
	wang := perf["王工"]
	assert.Equal(t, 4.0, wang.AvgDuration)
	assert.Equal(t, 2.0, wang.MinDuration)
	assert.Equal(t, 6.0, wang.MaxDuration)
	assert.Equal(t, 8.0, wang.TotalDuration)
	assert.Equal(t, Performance{TotalOrders: 1}, perf["未知"])
}

func TestCalculateTrend(t *testing.T) {
	tr, err := CalculateTrend(sampleOrders(), 30, now)
	require.NoError(t, err)
	assert.Equal(t, 30, tr.PeriodDays)
	assert.Equal(t, 4, tr.TotalOrders)
	assert.Equal(t, 0.1, tr.AvgPerDay)
	assert.Equal(t, map[string]int{"2024-01-15": 2, "2024-01-16": 1, "2024-01-17": 1}, tr.DailyStats)

	tr, err = CalculateTrend(sampleOrders(), 2, now)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.TotalOrders)

	_, err = CalculateTrend(sampleOrders(), 0, now)
	assert.Error(t, err)

	_, err = CalculateTrend([]Order{{OrderID: "WO-BAD", CreatedDate: "soon"}}, 30, now)
	assert.ErrorContains(t, err, "WO-BAD")
}

func TestOverdueOrders(t *testing.T) {
	overdue, err := OverdueOrders(sampleOrders(), DefaultOverdueHours, now)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "WO-20240116-REP-003", overdue[0].OrderID)
	assert.Equal(t, 51.5, overdue[0].HoursElapsed)

	overdue, err = OverdueOrders(sampleOrders(), 60, now)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	t.Run("date only and cancelled", func(t *testing.T) {
		orders := []Order{
			{OrderID: "A", Status: "待派单", CreatedDate: "2024-01-15"},
			{OrderID: "B", Status: "已取消", CreatedDate: "2024-01-01"},
		}
		overdue, err := OverdueOrders(orders, 48, now)
		require.NoError(t, err)
		require.Len(t, overdue, 1)
		assert.Equal(t, "A", overdue[0].OrderID)
		assert.Equal(t, 84.0, overdue[0].HoursElapsed)
	})

	_, err = OverdueOrders([]Order{{OrderID: "C", CreatedDate: "2024-01-15", CreatedTime: "9h"}}, 48, now)
	assert.ErrorContains(t, err, "order C: invalid creation time")
}

func TestFilters(t *testing.T) {
	orders := sampleOrders()

	got, err := FilterByDateRange(orders, "2024-01-16", "2024-01-17")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = FilterByDateRange(orders, "2024-01-16", "next week")
	assert.ErrorContains(t, err, "invalid end date")

	assert.Len(t, FilterByType(orders, "维修"), 2)
	assert.Len(t, FilterByStatus(orders, "已完成"), 3)
	assert.Len(t, FilterByArea(orders, "东区"), 2)
}

func TestReport(t *testing.T) {
	out, err := Report(sampleOrders(), DefaultOptions(), now)
	require.NoError(t, err)

	assert.Contains(t, out, "供水管网维修工单统计报告")
	assert.Contains(t, out, "工单总数：4 单")
	assert.Contains(t, out, "完成率：75%")
	assert.Contains(t, out, "东区：2 单 (50.0%)")
	assert.Contains(t, out, "WO-20240116-REP-003 - 已超期 51.5 小时")
	assert.Contains(t, out, "【近30天趋势】")
	assert.Contains(t, out, "日均工单：0.1 单/天")

	emergency := strings.Index(out, "抢修")
	repair := strings.Index(out, "维修 ")
	patrol := strings.Index(out, "巡检 ")
	assert.Less(t, emergency, repair)
	assert.Less(t, repair, patrol)
}

func TestReport_OverdueTruncated(t *testing.T) {
	var orders []Order
	for i := 0; i < 7; i++ {
		orders = append(orders, Order{OrderID: "WO-" + string(rune('A'+i)), Status: "进行中", CreatedDate: "2024-01-01"})
	}
	out, err := Report(orders, DefaultOptions(), now)
	require.NoError(t, err)
	assert.Contains(t, out, "WO-E - 已超期")
	assert.NotContains(t, out, "WO-F - 已超期")
	assert.Contains(t, out, "... 共 7 单")
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, sampleOrders(), DefaultOptions(), now))

	var exp Export
	require.NoError(t, json.Unmarshal(buf.Bytes(), &exp))
	assert.Equal(t, Summary{TotalOrders: 4, Completed: 3, CompletionRate: 75}, exp.Summary)
	assert.Equal(t, 1, exp.OverdueOrders)
	assert.Equal(t, 4, exp.Trend.TotalOrders)
	assert.Equal(t, 2, exp.ByType["维修"].Count)
}

func TestLoadOrders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.yaml")
	content := `work_orders:
  - order_id: WO-1
    type: 抢修
    status: 已完成
    created_date: "2024-01-15"
    created_time: "09:30"
    duration_hours: 5.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	orders, err := LoadOrders(path)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "09:30", orders[0].CreatedTime)
	assert.Equal(t, 5.5, orders[0].DurationHours)
}
