package leakage

import (
	"strings"
	"time"

	"github.com/jingkaihe/pipeskills/pkg/report"
)

// Options tunes the night flow window and the pressure anomaly threshold.
type Options struct {
	MNFStartHour      int
	MNFEndHour        int
	PressureThreshold float64
}

// DefaultOptions returns the 02:00-04:00 window and a 15% threshold.
func DefaultOptions() Options {
	return Options{MNFStartHour: 2, MNFEndHour: 4, PressureThreshold: 0.15}
}

// Analysis is the full result of an input document.
type Analysis struct {
	Export
	MNF      *MNFResult      `json:"mnf,omitempty"`
	Pressure *PressureResult `json:"pressure,omitempty"`
}

// Analyze balances every area and, when samples are present, runs the night
// flow and pressure analyses.
func (in *Input) Analyze(opts Options, now time.Time) (*Analysis, error) {
	a := &Analysis{Export: in.Calculator().Export(now)}
	if len(in.FlowSamples) > 0 {
		mnf, err := MNF(in.FlowSamples, opts.MNFStartHour, opts.MNFEndHour)
		if err != nil {
			return nil, err
		}
		a.MNF = &mnf
	}
	if len(in.PressureSamples) > 0 {
		p, err := DetectPressureAnomalies(in.PressureSamples, opts.PressureThreshold)
		if err != nil {
			return nil, err
		}
		a.Pressure = &p
	}
	return a, nil
}

// Report renders the area report for dmaID (every area when empty) followed
// by the night flow and pressure sections.
func (in *Input) Report(dmaID string, opts Options, now time.Time) (string, error) {
	out, err := in.Calculator().Report(dmaID)
	if err != nil {
		return "", err
	}
	a, err := in.Analyze(opts, now)
	if err != nil {
		return "", err
	}
	if a.MNF == nil && a.Pressure == nil {
		return out, nil
	}

	b := &report.Builder{}
	if a.MNF != nil {
		b.Blank()
		b.Section("夜间最小流量")
		b.Line("时段：%02d:00-%02d:00", opts.MNFStartHour, opts.MNFEndHour)
		b.Line("数据点数：%d", a.MNF.DataPoints)
		b.Line("最小流量：%.2f m³/h", a.MNF.MNF)
		b.Line("平均流量：%.2f m³/h", a.MNF.AvgFlow)
	}
	if a.Pressure != nil {
		p := a.Pressure
		b.Blank()
		b.Section("压力异常检测")
		b.Line("平均压力：%.3f MPa (标准差 %.3f)", p.AvgPressure, p.StdPressure)
		b.Line("压力范围：%.3f - %.3f MPa", p.MinPressure, p.MaxPressure)
		b.Line("异常点数：%d", p.AnomalyCount)
		for _, an := range p.Anomalies {
			kind := "偏高"
			if an.Type == "low" {
				kind = "偏低"
			}
			b.Line("  %s %.3f MPa %s %.2f%%", an.Time, an.Pressure, kind, an.Deviation)
		}
	}
	return strings.TrimRight(out, "\n") + "\n" + b.String(), nil
}
