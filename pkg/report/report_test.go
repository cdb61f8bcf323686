package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	now := time.Date(2024, 1, 20, 8, 30, 0, 0, time.UTC)
	b := New("供水管网巡检统计报告", 10, now)
	b.Section("总体统计")
	b.Line("巡检点数：%d 点", 3)
	b.Blank()
	b.Rule()

	assert.Equal(t, strings.Join([]string{
		"==========",
		"供水管网巡检统计报告",
		"==========",
		"生成时间：2024-01-20 08:30:00",
		"",
		"【总体统计】",
		"  巡检点数：3 点",
		"",
		"==========",
	}, "\n"), b.String())
}

func TestBuilder_NoTimestamp(t *testing.T) {
	b := New("DMA", 3, time.Time{})
	assert.Equal(t, "===\nDMA\n===", b.String())
}

func TestBuilder_Table(t *testing.T) {
	b := New("t", 5, time.Time{})
	b.Table([]string{"类型", "数量"}, [][]string{{"阀门", "12"}, {"管道", "3"}})

	out := b.String()
	assert.Contains(t, out, "类型")
	assert.Contains(t, out, "阀门")
	assert.Contains(t, out, "12")

	// Every table line has the same display width.
	lines := strings.Split(out, "\n")[3:]
	require.NotEmpty(t, lines)
	width := displayWidth(lines[0])
	for _, l := range lines {
		assert.Equal(t, width, displayWidth(l), l)
	}
}

func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		if r >= 0x1100 && (r <= 0x115f || (r >= 0x2e80 && r <= 0xa4cf) || (r >= 0xac00 && r <= 0xd7a3) || (r >= 0xf900 && r <= 0xfaff) || (r >= 0xff00 && r <= 0xff60)) {
			w += 2
			continue
		}
		w++
	}
	return w
}

func TestRound(t *testing.T) {
	tests := []struct {
		x        float64
		places   int
		expected float64
	}{
		{12.346, 2, 12.35},
		{0.0451, 3, 0.045},
		{-1.25, 1, -1.3},
		{7, 0, 7},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.expected, Round(tt.x, tt.places), 1e-9)
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 66.7, Percent(2, 3))
	assert.Equal(t, 0.0, Percent(1, 0))
}

func TestNum(t *testing.T) {
	assert.Equal(t, "5.5", Num(5.5))
	assert.Equal(t, "0", Num(0))
	assert.Equal(t, "12", Num(12))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "235,000.00", Money(235000))
	assert.Equal(t, "999.50", Money(999.5))
	assert.Equal(t, "-1,234,567.89", Money(-1234567.891))
	assert.Equal(t, "0.00", Money(0))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]string{"area": "东区<1>"}))
	assert.Equal(t, "{\n  \"area\": \"东区<1>\"\n}\n", buf.String())
}
