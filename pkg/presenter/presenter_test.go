package presenter

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestPresenter() (*TerminalPresenter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewWithOptions(&out, &errOut, ColorNever), &out, &errOut
}

func TestTerminalPresenter_Messages(t *testing.T) {
	tests := []struct {
		name     string
		call     func(p *TerminalPresenter)
		expected string
	}{
		{"success", func(p *TerminalPresenter) { p.Success("catalog is valid") }, "✓ catalog is valid\n"},
		{"warning", func(p *TerminalPresenter) { p.Warning("trigger overlap") }, "⚠ trigger overlap\n"},
		{"info", func(p *TerminalPresenter) { p.Info("3 skills") }, "3 skills\n"},
		{"section", func(p *TerminalPresenter) { p.Section("漏损分析") }, "漏损分析\n----\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out, _ := newTestPresenter()
			tt.call(p)
			assert.Equal(t, tt.expected, out.String())
		})
	}
}

func TestTerminalPresenter_Error(t *testing.T) {
	p, out, errOut := newTestPresenter()

	p.Error(errors.New("boom"), "Failed to load catalog")
	p.Error(errors.New("plain"), "")
	p.Error(nil, "ignored")

	assert.Empty(t, out.String())
	assert.Equal(t, "[ERROR] Failed to load catalog: boom\n[ERROR] plain\n", errOut.String())
}

func TestTerminalPresenter_Quiet(t *testing.T) {
	p, out, errOut := newTestPresenter()
	p.SetQuiet(true)
	assert.True(t, p.IsQuiet())

	p.Success("hidden")
	p.Warning("hidden")
	p.Info("hidden")
	p.Section("hidden")
	p.Separator()
	p.Error(errors.New("still shown"), "")

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "still shown")
}

func TestSetDefault(t *testing.T) {
	p, out, _ := newTestPresenter()
	prev := SetDefault(p)
	defer SetDefault(prev)

	Info("via default")
	assert.Equal(t, "via default\n", out.String())
}
