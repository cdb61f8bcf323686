// Package workorder computes maintenance work order statistics: grouping,
// staff performance, recent trend and overdue detection.
package workorder

import (
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jingkaihe/pipeskills/pkg/dataset"
	"github.com/jingkaihe/pipeskills/pkg/report"
	"github.com/pkg/errors"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04"

	StatusCompleted = "已完成"
	StatusCancelled = "已取消"

	DefaultOverdueHours = 48
	DefaultTrendDays    = 30

	defaultType  = "其他"
	defaultArea  = "未知"
	defaultFault = "其他"
	defaultStaff = "未知"
)

// typeRank orders work order types in reports; unlisted types sort last.
var typeRank = map[string]int{"抢修": 1, "维修": 2, "改造": 3, "安装": 4, "巡检": 5}

// Order is a single work order.
type Order struct {
	OrderID       string  `json:"order_id" yaml:"order_id"`
	Type          string  `json:"type" yaml:"type"`
	Status        string  `json:"status" yaml:"status"`
	CreatedDate   string  `json:"created_date" yaml:"created_date"`
	CreatedTime   string  `json:"created_time,omitempty" yaml:"created_time"`
	CompletedDate string  `json:"completed_date,omitempty" yaml:"completed_date"`
	Area          string  `json:"area" yaml:"area"`
	Staff         string  `json:"staff" yaml:"staff"`
	FaultType     string  `json:"fault_type" yaml:"fault_type"`
	DurationHours float64 `json:"duration_hours" yaml:"duration_hours"`
	Cost          float64 `json:"cost" yaml:"cost"`
}

// Completed reports whether the order was finished.
func (o Order) Completed() bool {
	return o.Status == StatusCompleted
}

// Open reports whether the order is neither finished nor cancelled.
func (o Order) Open() bool {
	return o.Status != StatusCompleted && o.Status != StatusCancelled
}

// Created returns the creation instant in loc, using the time of day when
// the order carries one.
func (o Order) Created(loc *time.Location) (time.Time, error) {
	if o.CreatedTime != "" {
		t, err := time.ParseInLocation(DateTimeLayout, o.CreatedDate+" "+o.CreatedTime, loc)
		return t, errors.Wrapf(err, "order %s: invalid creation time", o.OrderID)
	}
	t, err := time.ParseInLocation(DateLayout, o.CreatedDate, loc)
	return t, errors.Wrapf(err, "order %s: invalid creation date", o.OrderID)
}

// LoadOrders reads the "work_orders" list of a JSON or YAML file.
func LoadOrders(path string) ([]Order, error) {
	return dataset.LoadList[Order](path, "work_orders")
}

// FilterByDateRange keeps orders created within [start, end] (YYYY-MM-DD).
func FilterByDateRange(orders []Order, start, end string) ([]Order, error) {
	from, err := time.Parse(DateLayout, start)
	if err != nil {
		return nil, errors.Wrap(err, "invalid start date")
	}
	to, err := time.Parse(DateLayout, end)
	if err != nil {
		return nil, errors.Wrap(err, "invalid end date")
	}

	var out []Order
	for _, o := range orders {
		d, err := time.Parse(DateLayout, o.CreatedDate)
		if err != nil {
			return nil, errors.Wrapf(err, "order %s: invalid creation date", o.OrderID)
		}
		if !d.Before(from) && !d.After(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

// FilterByType keeps orders of the given type.
func FilterByType(orders []Order, orderType string) []Order {
	return filter(orders, func(o Order) bool { return o.Type == orderType })
}

// FilterByStatus keeps orders with the given status.
func FilterByStatus(orders []Order, status string) []Order {
	return filter(orders, func(o Order) bool { return o.Status == status })
}

// FilterByArea keeps orders of the given area.
func FilterByArea(orders []Order, area string) []Order {
	return filter(orders, func(o Order) bool { return o.Area == area })
}

func filter(orders []Order, keep func(Order) bool) []Order {
	var out []Order
	for _, o := range orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// TypeStats aggregates the orders of one type. AvgDuration is taken over
// completed orders while TotalDuration sums every order.
type TypeStats struct {
	Count          int     `json:"count"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
	AvgDuration    float64 `json:"avg_duration"`
	TotalDuration  float64 `json:"total_duration"`
	TotalCost      float64 `json:"total_cost"`
}

// GroupByType aggregates orders per type; orders without one count as 其他.
func GroupByType(orders []Order) map[string]TypeStats {
	groups := map[string]TypeStats{}
	for _, o := range orders {
		key := orDefault(o.Type, defaultType)
		g := groups[key]
		g.Count++
		if o.Completed() {
			g.Completed++
		}
		g.TotalDuration += o.DurationHours
		g.TotalCost += o.Cost
		groups[key] = g
	}
	for key, g := range groups {
		g.CompletionRate = report.Percent(g.Completed, g.Count)
		if g.Completed > 0 {
			g.AvgDuration = report.Round(g.TotalDuration/float64(g.Completed), 2)
		}
		g.TotalCost = report.Round(g.TotalCost, 2)
		groups[key] = g
	}
	return groups
}

// GroupByArea counts orders per area.
func GroupByArea(orders []Order) map[string]int {
	groups := map[string]int{}
	for _, o := range orders {
		groups[orDefault(o.Area, defaultArea)]++
	}
	return groups
}

// GroupByFaultType counts orders per fault type.
func GroupByFaultType(orders []Order) map[string]int {
	groups := map[string]int{}
	for _, o := range orders {
		groups[orDefault(o.FaultType, defaultFault)]++
	}
	return groups
}

// Performance summarises the orders handled by one staff member. Duration
// figures cover completed orders only.
type Performance struct {
	TotalOrders    int     `json:"total_orders"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
	TotalDuration  float64 `json:"total_duration"`
	AvgDuration    float64 `json:"avg_duration"`
	MinDuration    float64 `json:"min_duration"`
	MaxDuration    float64 `json:"max_duration"`
}

// PersonnelPerformance aggregates orders per staff member.
func PersonnelPerformance(orders []Order) map[string]Performance {
	perf := map[string]Performance{}
	for _, o := range orders {
		key := orDefault(o.Staff, defaultStaff)
		p := perf[key]
		p.TotalOrders++
		if o.Completed() {
			if p.Completed == 0 {
				p.MinDuration, p.MaxDuration = o.DurationHours, o.DurationHours
			}
			p.Completed++
			p.TotalDuration += o.DurationHours
			p.MinDuration = math.Min(p.MinDuration, o.DurationHours)
			p.MaxDuration = math.Max(p.MaxDuration, o.DurationHours)
		}
		perf[key] = p
	}
	for key, p := range perf {
		p.CompletionRate = report.Percent(p.Completed, p.TotalOrders)
		if p.Completed > 0 {
			p.AvgDuration = report.Round(p.TotalDuration/float64(p.Completed), 2)
		}
		p.TotalDuration = report.Round(p.TotalDuration, 2)
		p.MinDuration = report.Round(p.MinDuration, 2)
		p.MaxDuration = report.Round(p.MaxDuration, 2)
		perf[key] = p
	}
	return perf
}

// Trend counts orders created during the days before now.
type Trend struct {
	PeriodDays  int            `json:"period_days"`
	TotalOrders int            `json:"total_orders"`
	AvgPerDay   float64        `json:"avg_per_day"`
	DailyStats  map[string]int `json:"daily_stats"`
}

// CalculateTrend counts orders whose creation date lies within the last
// days before now.
func CalculateTrend(orders []Order, days int, now time.Time) (Trend, error) {
	if days <= 0 {
		return Trend{}, errors.Errorf("trend period must be positive, got %d days", days)
	}
	start := now.AddDate(0, 0, -days)

	tr := Trend{PeriodDays: days, DailyStats: map[string]int{}}
	for _, o := range orders {
		d, err := time.ParseInLocation(DateLayout, o.CreatedDate, now.Location())
		if err != nil {
			return Trend{}, errors.Wrapf(err, "order %s: invalid creation date", o.OrderID)
		}
		if d.Before(start) || d.After(now) {
			continue
		}
		tr.DailyStats[d.Format(DateLayout)]++
		tr.TotalOrders++
	}
	tr.AvgPerDay = report.Round(float64(tr.TotalOrders)/float64(days), 1)
	return tr, nil
}

// OverdueOrder is an open order past the overdue threshold.
type OverdueOrder struct {
	Order
	HoursElapsed float64 `json:"hours_elapsed"`
}

// OverdueOrders returns open orders created more than hours before now.
func OverdueOrders(orders []Order, hours float64, now time.Time) ([]OverdueOrder, error) {
	var out []OverdueOrder
	for _, o := range orders {
		if !o.Open() {
			continue
		}
		created, err := o.Created(now.Location())
		if err != nil {
			return nil, err
		}
		elapsed := now.Sub(created).Hours()
		if elapsed > hours {
			out = append(out, OverdueOrder{Order: o, HoursElapsed: report.Round(elapsed, 1)})
		}
	}
	return out, nil
}

// Options tunes the time-dependent parts of reports.
type Options struct {
	OverdueHours float64
	TrendDays    int
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{OverdueHours: DefaultOverdueHours, TrendDays: DefaultTrendDays}
}

// Summary is the overall completion figure.
type Summary struct {
	TotalOrders    int     `json:"total_orders"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
}

// Summarize counts completed orders.
func Summarize(orders []Order) Summary {
	s := Summary{TotalOrders: len(orders)}
	for _, o := range orders {
		if o.Completed() {
			s.Completed++
		}
	}
	s.CompletionRate = report.Percent(s.Completed, s.TotalOrders)
	return s
}

// Export is the JSON document written by ExportJSON.
type Export struct {
	Timestamp            string                 `json:"timestamp"`
	Summary              Summary                `json:"summary"`
	ByType               map[string]TypeStats   `json:"by_type"`
	ByArea               map[string]int         `json:"by_area"`
	ByFaultType          map[string]int         `json:"by_fault_type"`
	PersonnelPerformance map[string]Performance `json:"personnel_performance"`
	Trend                Trend                  `json:"trend"`
	OverdueOrders        int                    `json:"overdue_orders"`
}

// BuildExport computes every statistic at now.
func BuildExport(orders []Order, opts Options, now time.Time) (*Export, error) {
	trend, err := CalculateTrend(orders, opts.TrendDays, now)
	if err != nil {
		return nil, err
	}
	overdue, err := OverdueOrders(orders, opts.OverdueHours, now)
	if err != nil {
		return nil, err
	}
	return &Export{
		Timestamp:            now.Format(time.RFC3339),
		Summary:              Summarize(orders),
		ByType:               GroupByType(orders),
		ByArea:               GroupByArea(orders),
		ByFaultType:          GroupByFaultType(orders),
		PersonnelPerformance: PersonnelPerformance(orders),
		Trend:                trend,
		OverdueOrders:        len(overdue),
	}, nil
}

// ExportJSON writes BuildExport's result to w.
func ExportJSON(w io.Writer, orders []Order, opts Options, now time.Time) error {
	exp, err := BuildExport(orders, opts, now)
	if err != nil {
		return err
	}
	return report.WriteJSON(w, exp)
}

// sortedTypes orders type names by their report rank, then by name.
func sortedTypes(groups map[string]TypeStats) []string {
	rank := func(t string) int {
		if r, ok := typeRank[t]; ok {
			return r
		}
		return 99
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := rank(names[i]), rank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
