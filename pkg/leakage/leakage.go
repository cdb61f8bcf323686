// Package leakage computes District Metered Area (DMA) water loss figures:
// leakage volume and rate per area, minimum night flow, pressure anomalies
// and a graded status with a recommended action.
package leakage

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jingkaihe/pipeskills/pkg/report"
	"github.com/pkg/errors"
)

var (
	// ErrNoSamples is returned when an analysis receives no data points.
	ErrNoSamples = errors.New("no samples")
	// ErrUnknownDMA is returned when a report names an area never added.
	ErrUnknownDMA = errors.New("unknown DMA")
)

// CriticalRate is the leakage rate (percent) at which an area is critical.
const CriticalRate = 25.0

// DMA holds the balance of one metered area.
type DMA struct {
	ID          string    `json:"-"`
	TotalFlow   float64   `json:"total_flow"`
	UserTotal   float64   `json:"user_total"`
	UserFlows   []float64 `json:"user_flows"`
	Leakage     float64   `json:"leakage"`
	LeakageRate float64   `json:"leakage_rate"`
}

// Calculator accumulates DMA balances in insertion order.
type Calculator struct {
	dmas  []DMA
	index map[string]int
}

// NewCalculator returns an empty calculator.
func NewCalculator() *Calculator {
	return &Calculator{index: make(map[string]int)}
}

// AddDMA records the inlet meter total and the customer meter readings of an
// area (m³). Adding an existing id replaces its balance in place.
func (c *Calculator) AddDMA(id string, totalFlow float64, userFlows []float64) DMA {
	var userTotal float64
	for _, f := range userFlows {
		userTotal += f
	}
	leakage := totalFlow - userTotal
	var rate float64
	if totalFlow > 0 {
		rate = leakage / totalFlow * 100
	}

	d := DMA{
		ID:          id,
		TotalFlow:   totalFlow,
		UserTotal:   userTotal,
		UserFlows:   append([]float64(nil), userFlows...),
		Leakage:     leakage,
		LeakageRate: rate,
	}
	if i, ok := c.index[id]; ok {
		c.dmas[i] = d
	} else {
		c.index[id] = len(c.dmas)
		c.dmas = append(c.dmas, d)
	}
	return d
}

// DMA returns the balance recorded for id.
func (c *Calculator) DMA(id string) (DMA, bool) {
	i, ok := c.index[id]
	if !ok {
		return DMA{}, false
	}
	return c.dmas[i], true
}

// DMAs returns all balances in insertion order.
func (c *Calculator) DMAs() []DMA {
	return append([]DMA(nil), c.dmas...)
}

// Summary aggregates all recorded areas.
type Summary struct {
	TotalDMAs      int     `json:"total_dmas"`
	AvgLeakageRate float64 `json:"avg_leakage_rate"`
	TotalLeakage   float64 `json:"total_leakage"`
	CriticalCount  int     `json:"critical_count"`
}

// Summary returns unrounded aggregates; zero when no area was added.
func (c *Calculator) Summary() Summary {
	s := Summary{TotalDMAs: len(c.dmas)}
	if len(c.dmas) == 0 {
		return s
	}
	var rateSum float64
	for _, d := range c.dmas {
		rateSum += d.LeakageRate
		s.TotalLeakage += d.Leakage
		if d.LeakageRate >= CriticalRate {
			s.CriticalCount++
		}
	}
	s.AvgLeakageRate = rateSum / float64(len(c.dmas))
	return s
}

// FlowSample is a flow reading (m³/h) at a clock time "HH:MM".
type FlowSample struct {
	Time string  `json:"time" yaml:"time"`
	Flow float64 `json:"flow" yaml:"flow"`
}

// MNFResult is the minimum night flow analysis of a time window.
type MNFResult struct {
	MNF        float64   `json:"mnf"`
	AvgFlow    float64   `json:"avg_flow"`
	DataPoints int       `json:"data_points"`
	FlowValues []float64 `json:"flow_values,omitempty"`
}

// MNF finds the minimum night flow among samples whose hour lies in
// [startHour, endHour). An empty window yields a zero result.
func MNF(samples []FlowSample, startHour, endHour int) (MNFResult, error) {
	var values []float64
	for _, s := range samples {
		hour, err := parseHour(s.Time)
		if err != nil {
			return MNFResult{}, err
		}
		if hour >= startHour && hour < endHour {
			values = append(values, s.Flow)
		}
	}
	if len(values) == 0 {
		return MNFResult{}, nil
	}

	minFlow, sum := values[0], 0.0
	rounded := make([]float64, len(values))
	for i, v := range values {
		minFlow = math.Min(minFlow, v)
		sum += v
		rounded[i] = report.Round(v, 2)
	}
	return MNFResult{
		MNF:        report.Round(minFlow, 2),
		AvgFlow:    report.Round(sum/float64(len(values)), 2),
		DataPoints: len(values),
		FlowValues: rounded,
	}, nil
}

func parseHour(clock string) (int, error) {
	head, _, _ := strings.Cut(strings.TrimSpace(clock), ":")
	hour, err := strconv.Atoi(head)
	if err != nil || hour < 0 || hour > 23 {
		return 0, errors.Errorf("invalid sample time %q", clock)
	}
	return hour, nil
}

// PressureSample is a pressure reading (MPa).
type PressureSample struct {
	Time     string  `json:"time" yaml:"time"`
	Pressure float64 `json:"pressure" yaml:"pressure"`
}

// Anomaly is a pressure reading that deviates from the mean by more than the
// threshold.
type Anomaly struct {
	Index       int     `json:"index"`
	Time        string  `json:"time"`
	Pressure    float64 `json:"pressure"`
	AvgPressure float64 `json:"avg_pressure"`
	Deviation   float64 `json:"deviation"` // percent
	Type        string  `json:"type"`      // "low" or "high"
}

// PressureResult describes a pressure series.
type PressureResult struct {
	AvgPressure  float64   `json:"avg_pressure"`
	StdPressure  float64   `json:"std_pressure"`
	MinPressure  float64   `json:"min_pressure"`
	MaxPressure  float64   `json:"max_pressure"`
	Anomalies    []Anomaly `json:"anomalies"`
	AnomalyCount int       `json:"anomaly_count"`
}

// DetectPressureAnomalies flags readings whose relative deviation from the
// mean exceeds threshold (a fraction, e.g. 0.15).
func DetectPressureAnomalies(samples []PressureSample, threshold float64) (PressureResult, error) {
	if len(samples) == 0 {
		return PressureResult{}, errors.Wrap(ErrNoSamples, "pressure anomaly detection")
	}

	minP, maxP, sum := samples[0].Pressure, samples[0].Pressure, 0.0
	for _, s := range samples {
		sum += s.Pressure
		minP = math.Min(minP, s.Pressure)
		maxP = math.Max(maxP, s.Pressure)
	}
	mean := sum / float64(len(samples))

	var std float64
	if len(samples) > 1 {
		var sq float64
		for _, s := range samples {
			sq += (s.Pressure - mean) * (s.Pressure - mean)
		}
		std = math.Sqrt(sq / float64(len(samples)-1))
	}

	anomalies := []Anomaly{}
	for i, s := range samples {
		var deviation float64
		if mean > 0 {
			deviation = math.Abs(s.Pressure-mean) / mean
		}
		if deviation <= threshold {
			continue
		}
		kind := "high"
		if s.Pressure < mean {
			kind = "low"
		}
		anomalies = append(anomalies, Anomaly{
			Index:       i,
			Time:        s.Time,
			Pressure:    s.Pressure,
			AvgPressure: report.Round(mean, 3),
			Deviation:   report.Round(deviation*100, 2),
			Type:        kind,
		})
	}

	return PressureResult{
		AvgPressure:  report.Round(mean, 3),
		StdPressure:  report.Round(std, 3),
		MinPressure:  report.Round(minP, 3),
		MaxPressure:  report.Round(maxP, 3),
		Anomalies:    anomalies,
		AnomalyCount: len(anomalies),
	}, nil
}

// Status grades a leakage rate.
type Status string

const (
	StatusExcellent Status = "excellent"
	StatusGood      Status = "good"
	StatusWarning   Status = "warning"
	StatusCritical  Status = "critical"
)

// Assessment is the graded status of a leakage rate.
type Assessment struct {
	Status  Status `json:"status"`
	Level   string `json:"level"`
	Action  string `json:"action"`
	Urgency string `json:"urgency"`
}

// Assess grades a leakage rate given in percent.
func Assess(rate float64) Assessment {
	var a Assessment
	switch {
	case rate < 10:
		a = Assessment{Status: StatusExcellent, Level: "A-优秀", Action: "保持现状，正常维护"}
	case rate < 15:
		a = Assessment{Status: StatusGood, Level: "B-良好", Action: "关注漏损变化，加强巡检"}
	case rate < CriticalRate:
		a = Assessment{Status: StatusWarning, Level: "C-需关注", Action: "排查漏水点，制定整改计划"}
	default:
		a = Assessment{Status: StatusCritical, Level: "D-严重", Action: "立即启动DMA分区检测，重点排查"}
	}
	switch {
	case rate >= CriticalRate:
		a.Urgency = "高"
	case rate >= 15:
		a.Urgency = "中"
	default:
		a.Urgency = "低"
	}
	return a
}

// sortedIDs returns area ids sorted for stable JSON output.
func (c *Calculator) sortedIDs() []string {
	ids := make([]string, 0, len(c.dmas))
	for _, d := range c.dmas {
		ids = append(ids, d.ID)
	}
	sort.Strings(ids)
	return ids
}
