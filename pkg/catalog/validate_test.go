package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCatalog renders c into dir/README.md together with the named
// artifact files and reloads it from disk.
func writeCatalog(t *testing.T, dir string, c *Catalog, artifacts ...string) *Catalog {
	t.Helper()
	for _, a := range artifacts {
		path := filepath.Join(dir, a)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("PK"), 0o644))
	}
	path := filepath.Join(dir, "README.md")
	require.NoError(t, Write(path, c))
	loaded, err := Load(path)
	require.NoError(t, err)
	return loaded
}

func decomposeCatalog() *Catalog {
	return &Catalog{
		Title: "Skills",
		Entries: []SkillEntry{{
			Name:         "Decompose Principle",
			Description:  "Break a problem down to first principles",
			UseCases:     []string{"Plan a complex change"},
			TriggerWords: []string{"decompose", "拆解"},
			ArtifactPath: "decompose-principle.skill",
		}},
		Sections: []Section{
			{Heading: "Installation", Body: "Import the file."},
			{Heading: "Usage", Body: "Say decompose."},
			{Heading: "License", Body: "MIT"},
		},
	}
}

func TestValidate_ArtifactAlongsideDocument(t *testing.T) {
	t.Run("artifact present", func(t *testing.T) {
		c := writeCatalog(t, t.TempDir(), decomposeCatalog(), "decompose-principle.skill")

		report := Validate(context.Background(), c, ValidateOptions{})
		assert.True(t, report.OK())
		assert.Empty(t, report.Issues)
		assert.NoError(t, report.Err())
	})

	t.Run("artifact missing", func(t *testing.T) {
		c := writeCatalog(t, t.TempDir(), decomposeCatalog())

		report := Validate(context.Background(), c, ValidateOptions{})
		assert.False(t, report.OK())
		require.Len(t, report.Errors(), 1)
		issue := report.Errors()[0]
		assert.Equal(t, "Decompose Principle", issue.Entry)
		assert.Equal(t, "artifact_path", issue.Field)
		assert.Contains(t, issue.Message, "does not exist")
		assert.Contains(t, report.Err().Error(), "catalog has 1 problem(s)")
	})

	t.Run("artifact is a directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "decompose-principle.skill"), 0o755))
		c := writeCatalog(t, dir, decomposeCatalog())

		report := Validate(context.Background(), c, ValidateOptions{})
		require.Len(t, report.Errors(), 1)
		assert.Contains(t, report.Errors()[0].Message, "not a regular file")
	})

	t.Run("artifact in a subdirectory", func(t *testing.T) {
		c := decomposeCatalog()
		c.Entries[0].ArtifactPath = "dist/decompose-principle.skill"
		loaded := writeCatalog(t, t.TempDir(), c, "dist/decompose-principle.skill")

		assert.True(t, Validate(context.Background(), loaded, ValidateOptions{}).OK())
	})
}

func TestValidate_EntryFields(t *testing.T) {
	c := &Catalog{
		Entries: []SkillEntry{
			{Name: "", Description: "", TriggerWords: nil, ArtifactPath: ""},
			{Name: "Dup", Description: "d", UseCases: []string{"u"}, TriggerWords: []string{"a", " A "}, ArtifactPath: "https://example.com/dup.skill"},
			{Name: "Dup", Description: "d", UseCases: []string{"u"}, TriggerWords: []string{"b", ""}, ArtifactPath: "https://example.com/dup2.skill"},
		},
	}

	report := Validate(context.Background(), c, ValidateOptions{BaseDir: t.TempDir()})

	messages := map[string]bool{}
	for _, i := range report.Errors() {
		messages[i.Field+": "+i.Message] = true
	}
	assert.True(t, messages["name: must not be empty"])
	assert.True(t, messages["description: must not be empty"])
	assert.True(t, messages["trigger_words: must list at least one trigger word"])
	assert.True(t, messages["artifact_path: must not be empty"])
	assert.True(t, messages[`trigger_words: duplicate trigger word " A "`])
	assert.True(t, messages["trigger_words: contains an empty trigger word"])
	assert.True(t, messages["name: duplicate entry name"])

	var remote int
	for _, i := range report.Warnings() {
		if i.Field == "artifact_path" {
			remote++
			assert.Contains(t, i.Message, "cannot be verified")
		}
	}
	assert.Equal(t, 2, remote)
}

func TestValidate_TriggerConflict(t *testing.T) {
	dir := t.TempDir()
	c := decomposeCatalog()
	c.Entries = append(c.Entries, SkillEntry{
		Name:         "Root Cause",
		Description:  "Find the root cause of a failure",
		UseCases:     []string{"Incident review"},
		TriggerWords: []string{"root cause", "Decompose"},
		ArtifactPath: "root-cause.skill",
	})
	loaded := writeCatalog(t, dir, c, "decompose-principle.skill", "root-cause.skill")

	report := Validate(context.Background(), loaded, ValidateOptions{})
	assert.True(t, report.OK(), "a trigger conflict is a warning")
	require.Len(t, report.Warnings(), 1)
	w := report.Warnings()[0]
	assert.Equal(t, "Root Cause", w.Entry)
	assert.Contains(t, w.Message, `conflicts with entry "Decompose Principle"`)

	strict := Validate(context.Background(), loaded, ValidateOptions{Strict: true})
	assert.False(t, strict.OK())
	assert.Contains(t, strict.Err().Error(), "conflicts with entry")
}

func TestValidate_DocumentStructure(t *testing.T) {
	dir := t.TempDir()
	doc := `---
skills:
- name: Decompose Principle
  description: d
  use_cases: [u]
  trigger_words: [decompose]
  artifact_path: decompose-principle.skill
---

# Skills

## Available Skills

| Name | Description | Trigger Words | Artifact |
|------|-------------|---------------|----------|
| Old Skill | gone | x | x |

## Usage

Use it.
`
	path := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	for _, a := range []string{"decompose-principle.skill", "stale/old.skill"} {
		require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, a)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, a), []byte("PK"), 0o644))
	}

	c, err := Load(path)
	require.NoError(t, err)
	report := Validate(context.Background(), c, ValidateOptions{})

	assert.Empty(t, report.Errors())
	var got []string
	for _, w := range report.Warnings() {
		got = append(got, w.Error())
	}
	assert.ElementsMatch(t, []string{
		`"Decompose Principle".table: entry is missing from the skills table`,
		`table: table lists "Old Skill" which has no entry`,
		"sections: missing Installation section",
		"sections: missing License section",
		"artifacts: stale/old.skill is not referenced by any entry",
	}, got)
}

func TestValidate_NoTable(t *testing.T) {
	c, err := Parse([]byte("---\nskills:\n- name: a\n  description: b\n  use_cases: [c]\n  trigger_words: [d]\n  artifact_path: https://example.com/a.skill\n---\n\n# T\n\n## 安装\n\nx\n\n## 使用说明\n\ny\n\n## 许可证\n\nMIT\n"))
	require.NoError(t, err)

	report := Validate(context.Background(), c, ValidateOptions{BaseDir: t.TempDir()})
	var fields []string
	for _, w := range report.Warnings() {
		fields = append(fields, w.Field)
	}
	assert.ElementsMatch(t, []string{"artifact_path", "table"}, fields)
}

func TestSeverity_String(t *testing.T) {
	assert.Equal(t, "error", SeverityError.String())
	assert.Equal(t, "warning", SeverityWarning.String())
}
