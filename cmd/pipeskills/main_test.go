package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/jingkaihe/pipeskills/pkg/presenter"
	"github.com/stretchr/testify/require"
)

// capturePresenter routes presenter output into buffers for the test.
func capturePresenter(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	prev := presenter.SetDefault(presenter.NewWithOptions(&out, &errOut, presenter.ColorNever))
	t.Cleanup(func() { presenter.SetDefault(prev) })
	return &out, &errOut
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const leakSkill = `---
name: leak-analyzer
description: 供水管网DMA分区漏损分析
use_cases:
  - 月度漏损率核算
trigger_words: [漏损, leakage]
---

# Leak Analyzer
`

const workOrderSkill = `---
name: work-order
description: 维修工单统计
use_cases:
  - 月度工单汇总
trigger_words: [工单, work order]
---

# Work Order
`

// writeSkills creates two skill packages under dir/skills.
func writeSkills(t *testing.T, dir string) string {
	t.Helper()
	root := filepath.Join(dir, "skills")
	writeFile(t, filepath.Join(root, "leak-analyzer", "SKILL.md"), leakSkill)
	writeFile(t, filepath.Join(root, "leak-analyzer", "scripts", "leakage.py"), "print('ok')\n")
	writeFile(t, filepath.Join(root, "work-order", "SKILL.md"), workOrderSkill)
	return root
}
