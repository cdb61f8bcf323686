package asset

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jingkaihe/pipeskills/pkg/report"
)

const (
	reportWidth  = 70
	listSize     = 5
	tenThousands = 10000
)

// Report renders the ledger statistics report generated at now.
func Report(ctx context.Context, assets []Asset, opts Options, now time.Time) string {
	b := report.New("供水管网设备资产统计报告", reportWidth, now)

	s := Summarize(assets)
	b.Section("总体统计")
	b.Line("资产总数：%d 台/个", s.TotalCount)
	b.Line("资产原值：%s 元", report.Money(s.TotalValue))
	b.Line("资产净值：%s 元", report.Money(s.NetValue))
	b.Line("累计折旧：%s 元", report.Money(s.TotalValue-s.NetValue))
	b.Line("折旧率：%.2f%%", s.DepreciationRate)
	b.Blank()

	if byType := GroupByType(assets); len(byType) > 0 {
		b.Section("按设备类型统计")
		rows := make([][]string, 0, len(byType))
		for _, name := range sortedKeys(byType) {
			g := byType[name]
			rows = append(rows, []string{
				name,
				strconv.Itoa(g.Count),
				fmt.Sprintf("%.2f", g.OriginalValue/tenThousands),
				fmt.Sprintf("%.2f", g.NetValue/tenThousands),
				report.Num(g.AvgAge),
			})
		}
		b.Table([]string{"类型", "数量", "原值(万)", "净值(万)", "平均年限"}, rows)
		b.Blank()
	}

	if byHealth := GroupByHealth(assets); len(byHealth) > 0 {
		b.Section("按健康状况统计")
		for _, grade := range HealthGrades {
			h, ok := byHealth[grade]
			if !ok {
				continue
			}
			b.Line("%s：%d 台 (%s%%) - 净值 %s 元", healthLabels[grade], h.Count, report.Num(h.Percentage), report.Money(h.TotalValue))
		}
		b.Blank()
	}

	b.Section("按使用年限统计")
	for _, band := range AgeBands(assets) {
		var pct float64
		if len(assets) > 0 {
			pct = float64(band.Count) / float64(len(assets)) * 100
		}
		b.Line("%s：%d 台 (%.1f%%)", band.Range, band.Count, pct)
	}
	b.Blank()

	if overdue := MaintenanceOverdue(ctx, assets, opts.OverdueDays, now); len(overdue) > 0 {
		b.Section("超期未维护设备")
		for i, a := range overdue {
			if i == listSize {
				b.Line("... 共 %d 台", len(overdue))
				break
			}
			b.Line("%s - 超期 %d 天", a.Name, a.DaysOverdue)
		}
		b.Blank()
	}

	if candidates := ReplacementCandidates(assets, opts.ReplacementMinAge); len(candidates) > 0 {
		b.Section("建议更换设备")
		for i, a := range candidates {
			if i == listSize {
				b.Line("... 共 %d 台", len(candidates))
				break
			}
			b.Line("%s - 使用年限 %s 年 - 健康等级 %s", a.Name, report.Num(a.Age), a.Grade())
		}
		b.Blank()
	}

	b.Rule()
	return b.String()
}
