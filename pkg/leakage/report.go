package leakage

import (
	"io"
	"time"

	"github.com/jingkaihe/pipeskills/pkg/dataset"
	"github.com/jingkaihe/pipeskills/pkg/report"
	"github.com/pkg/errors"
)

const reportWidth = 60

// Report renders the text report of one area, or of every area when dmaID
// is empty, followed by the summary.
func (c *Calculator) Report(dmaID string) (string, error) {
	dmas := c.dmas
	if dmaID != "" {
		d, ok := c.DMA(dmaID)
		if !ok {
			return "", errors.Wrapf(ErrUnknownDMA, "%q", dmaID)
		}
		dmas = []DMA{d}
	}

	b := report.New("供水管网DMA分区漏损分析报告", reportWidth, time.Time{})
	for _, d := range dmas {
		a := Assess(d.LeakageRate)
		b.Blank()
		b.Section("分区 " + d.ID)
		b.Divider()
		b.Line("总表读数：%.2f m³", d.TotalFlow)
		b.Line("用户用水量：%.2f m³", d.UserTotal)
		b.Line("漏损量：%.2f m³", d.Leakage)
		b.Line("漏损率：%.2f%%", d.LeakageRate)
		b.Line("评估等级：%s", a.Level)
		b.Line("紧急程度：%s", a.Urgency)
		b.Line("建议措施：%s", a.Action)
	}

	s := c.Summary()
	b.Blank()
	b.Rule()
	b.Section("汇总统计")
	b.Line("分区数量：%d 个", s.TotalDMAs)
	b.Line("平均漏损率：%.2f%%", s.AvgLeakageRate)
	b.Line("总漏损量：%.2f m³", s.TotalLeakage)
	b.Line("严重分区数：%d 个", s.CriticalCount)
	b.Rule()
	return b.String(), nil
}

// Export is the JSON document written by ExportJSON.
type Export struct {
	Timestamp string         `json:"timestamp"`
	DMAData   map[string]DMA `json:"dma_data"`
	Summary   Summary        `json:"summary"`
}

// Export snapshots the calculator at now with the summary rounded to two
// decimals.
func (c *Calculator) Export(now time.Time) Export {
	data := make(map[string]DMA, len(c.dmas))
	for _, id := range c.sortedIDs() {
		d, _ := c.DMA(id)
		data[id] = d
	}
	s := c.Summary()
	s.AvgLeakageRate = report.Round(s.AvgLeakageRate, 2)
	s.TotalLeakage = report.Round(s.TotalLeakage, 2)
	return Export{
		Timestamp: now.Format(time.RFC3339),
		DMAData:   data,
		Summary:   s,
	}
}

// ExportJSON writes Export(now) to w.
func (c *Calculator) ExportJSON(w io.Writer, now time.Time) error {
	return report.WriteJSON(w, c.Export(now))
}

// Reading is an area balance as it appears in an input document.
type Reading struct {
	ID        string    `json:"id" yaml:"id"`
	TotalFlow float64   `json:"total_flow" yaml:"total_flow"`
	UserFlows []float64 `json:"user_flows" yaml:"user_flows"`
}

// Input is the dataset consumed by the leak tool.
type Input struct {
	DMAs            []Reading        `json:"dmas" yaml:"dmas"`
	FlowSamples     []FlowSample     `json:"flow_samples" yaml:"flow_samples"`
	PressureSamples []PressureSample `json:"pressure_samples" yaml:"pressure_samples"`
}

// LoadInput reads an Input from a JSON or YAML file.
func LoadInput(path string) (*Input, error) {
	var in Input
	if err := dataset.Decode(path, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// Calculator returns a calculator holding every area of the input.
func (in *Input) Calculator() *Calculator {
	c := NewCalculator()
	for _, r := range in.DMAs {
		c.AddDMA(r.ID, r.TotalFlow, r.UserFlows)
	}
	return c
}
