// Package skills discovers skill source packages and packs them into
// artifacts. A skill package is a directory containing a SKILL.md file whose
// YAML frontmatter describes the skill; the directory may also bundle
// scripts and reference material.
package skills

import (
	"github.com/jingkaihe/pipeskills/pkg/catalog"
)

// Skill represents a discovered skill with its metadata
type Skill struct {
	Name         string   // Unique name from frontmatter
	Description  string   // What the skill does
	UseCases     []string // Optional use case list
	TriggerWords []string // Optional trigger phrases
	Directory    string   // Full path to the skill directory
	Content      string   // SKILL.md body without frontmatter
}

// Metadata represents the YAML frontmatter in SKILL.md files
type Metadata struct {
	Name         string   `mapstructure:"name"`
	Description  string   `mapstructure:"description"`
	UseCases     []string `mapstructure:"use_cases"`
	TriggerWords []string `mapstructure:"trigger_words"`
}

// Entry converts the skill into a catalog entry pointing at artifactPath.
func (s *Skill) Entry(artifactPath string) catalog.SkillEntry {
	return catalog.SkillEntry{
		Name:         s.Name,
		Description:  s.Description,
		UseCases:     append([]string(nil), s.UseCases...),
		TriggerWords: append([]string(nil), s.TriggerWords...),
		ArtifactPath: artifactPath,
	}
}
