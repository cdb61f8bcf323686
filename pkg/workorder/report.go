package workorder

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jingkaihe/pipeskills/pkg/report"
)

const (
	reportWidth     = 70
	overdueListSize = 5
)

// Report renders the work order statistics report generated at now.
func Report(orders []Order, opts Options, now time.Time) (string, error) {
	trend, err := CalculateTrend(orders, opts.TrendDays, now)
	if err != nil {
		return "", err
	}
	overdue, err := OverdueOrders(orders, opts.OverdueHours, now)
	if err != nil {
		return "", err
	}

	b := report.New("供水管网维修工单统计报告", reportWidth, now)

	s := Summarize(orders)
	b.Section("总体统计")
	b.Line("工单总数：%d 单", s.TotalOrders)
	b.Line("已完成：%d 单", s.Completed)
	b.Line("进行中：%d 单", s.TotalOrders-s.Completed)
	b.Line("完成率：%s%%", report.Num(s.CompletionRate))
	b.Blank()

	if byType := GroupByType(orders); len(byType) > 0 {
		b.Section("按工单类型统计")
		rows := make([][]string, 0, len(byType))
		for _, name := range sortedTypes(byType) {
			g := byType[name]
			rows = append(rows, []string{
				name,
				strconv.Itoa(g.Count),
				strconv.Itoa(g.Completed),
				report.Num(g.CompletionRate) + "%",
				report.Num(g.AvgDuration),
			})
		}
		b.Table([]string{"类型", "数量", "完成", "完成率", "平均用时(h)"}, rows)
		b.Blank()
	}

	if byArea := GroupByArea(orders); len(byArea) > 0 {
		b.Section("按区域统计")
		areas := make([]string, 0, len(byArea))
		for a := range byArea {
			areas = append(areas, a)
		}
		sort.Strings(areas)
		for _, a := range areas {
			b.Line("%s：%d 单 (%s)", a, byArea[a], share(byArea[a], len(orders)))
		}
		b.Blank()
	}

	if byFault := GroupByFaultType(orders); len(byFault) > 0 {
		b.Section("按故障类型统计")
		faults := make([]string, 0, len(byFault))
		for f := range byFault {
			faults = append(faults, f)
		}
		sort.Slice(faults, func(i, j int) bool {
			if byFault[faults[i]] != byFault[faults[j]] {
				return byFault[faults[i]] > byFault[faults[j]]
			}
			return faults[i] < faults[j]
		})
		for _, f := range faults {
			b.Line("%s：%d 单 (%s)", f, byFault[f], share(byFault[f], len(orders)))
		}
		b.Blank()
	}

	if perf := PersonnelPerformance(orders); len(perf) > 0 {
		b.Section("人员绩效统计")
		staff := make([]string, 0, len(perf))
		for name := range perf {
			staff = append(staff, name)
		}
		sort.Slice(staff, func(i, j int) bool {
			if perf[staff[i]].Completed != perf[staff[j]].Completed {
				return perf[staff[i]].Completed > perf[staff[j]].Completed
			}
			return staff[i] < staff[j]
		})
		rows := make([][]string, 0, len(staff))
		for _, name := range staff {
			p := perf[name]
			rows = append(rows, []string{
				name,
				strconv.Itoa(p.TotalOrders),
				strconv.Itoa(p.Completed),
				report.Num(p.CompletionRate) + "%",
				report.Num(p.AvgDuration),
			})
		}
		b.Table([]string{"人员", "总工单", "完成", "完成率", "平均用时(h)"}, rows)
		b.Blank()
	}

	if len(overdue) > 0 {
		b.Section("超期未完成工单")
		for i, o := range overdue {
			if i == overdueListSize {
				b.Line("... 共 %d 单", len(overdue))
				break
			}
			b.Line("%s - 已超期 %s 小时", o.OrderID, report.Num(o.HoursElapsed))
		}
		b.Blank()
	}

	b.Section(fmt.Sprintf("近%d天趋势", trend.PeriodDays))
	b.Line("工单总数：%d 单", trend.TotalOrders)
	b.Line("日均工单：%s 单/天", report.Num(trend.AvgPerDay))
	b.Blank()

	b.Rule()
	return b.String(), nil
}

func share(count, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(count)/float64(total)*100)
}
