// Package catalog models a skill catalog: a Markdown document whose YAML
// frontmatter lists skill entries and whose body carries the human-facing
// table, installation notes, usage notes and license.
//
// Entries are only ever read by code. The package parses and renders the
// document losslessly, validates it, and describes its frontmatter as a JSON
// schema.
package catalog

import (
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// ErrEntryNotFound is returned when a lookup names no entry in the catalog.
var ErrEntryNotFound = errors.New("skill entry not found")

// SkillEntry is the descriptive record of one packaged skill.
type SkillEntry struct {
	Name         string   `yaml:"name" mapstructure:"name" json:"name" jsonschema:"title=Name,description=Display name of the skill; may be bilingual"`
	Description  string   `yaml:"description" mapstructure:"description" json:"description" jsonschema:"description=What the skill does"`
	UseCases     []string `yaml:"use_cases,omitempty" mapstructure:"use_cases" json:"use_cases,omitempty" jsonschema:"description=Ordered list of short use case descriptions"`
	TriggerWords []string `yaml:"trigger_words" mapstructure:"trigger_words" json:"trigger_words" jsonschema:"description=Phrases the host platform matches to activate the skill,uniqueItems=true"`
	ArtifactPath string   `yaml:"artifact_path" mapstructure:"artifact_path" json:"artifact_path" jsonschema:"description=Path or URI of the packaged .skill artifact"`
}

// Section is a level-two section of the catalog document.
type Section struct {
	Heading string
	Body    string
}

// Catalog is a parsed catalog document.
type Catalog struct {
	// Preamble is the markdown above the title, such as badges. It is only
	// kept apart from Intro when the document has a title.
	Preamble string
	Title    string
	Intro    string
	Entries  []SkillEntry
	// SkillsNote and SkillsFooter are the markdown of the skills section
	// before and after its table. The table itself is generated from Entries.
	SkillsNote   string
	SkillsFooter string
	Sections     []Section

	// Path is the file the catalog was loaded from. Relative artifact paths
	// resolve against its directory.
	Path string

	// tableNames holds the names listed in the document's skills table as
	// parsed; nil when the document had no table.
	tableNames []string
}

// Entry returns the entry with the given name.
func (c *Catalog) Entry(name string) (SkillEntry, error) {
	for _, e := range c.Entries {
		if e.Name == name {
			return e, nil
		}
	}
	return SkillEntry{}, errors.Wrapf(ErrEntryNotFound, "%q", name)
}

// Names returns the entry names sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// Filter returns the entries whose name matches the glob pattern, in
// document order. Matching is case-insensitive. An empty pattern matches
// everything.
func (c *Catalog) Filter(pattern string) ([]SkillEntry, error) {
	if pattern == "" {
		return append([]SkillEntry(nil), c.Entries...), nil
	}
	g, err := glob.Compile(strings.ToLower(pattern))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid filter pattern %q", pattern)
	}
	var out []SkillEntry
	for _, e := range c.Entries {
		if g.Match(strings.ToLower(e.Name)) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Section returns the section whose heading matches name case-insensitively.
func (c *Catalog) Section(name string) (Section, bool) {
	for _, s := range c.Sections {
		if strings.EqualFold(strings.TrimSpace(s.Heading), name) {
			return s, true
		}
	}
	return Section{}, false
}

// normalizeTrigger is the form trigger words are compared in.
func normalizeTrigger(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}
