package catalog

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/pipeskills/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Severity classifies a validation issue.
type Severity int

const (
	// SeverityWarning marks an authoring problem that does not break the catalog.
	SeverityWarning Severity = iota
	// SeverityError marks a broken entry.
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Issue is a single validation finding. Entry is empty for catalog-wide
// findings.
type Issue struct {
	Severity Severity
	Entry    string
	Field    string
	Message  string
}

func (i Issue) Error() string {
	var b strings.Builder
	if i.Entry != "" {
		fmt.Fprintf(&b, "%q", i.Entry)
		if i.Field != "" {
			b.WriteString("." + i.Field)
		}
		b.WriteString(": ")
	} else if i.Field != "" {
		b.WriteString(i.Field + ": ")
	}
	b.WriteString(i.Message)
	return b.String()
}

// Report collects the issues found by Validate.
type Report struct {
	Issues []Issue
	// Strict makes warnings fail the report.
	Strict bool
}

// Errors returns the error-level issues.
func (r *Report) Errors() []Issue { return r.filter(SeverityError) }

// Warnings returns the warning-level issues.
func (r *Report) Warnings() []Issue { return r.filter(SeverityWarning) }

func (r *Report) filter(s Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == s {
			out = append(out, i)
		}
	}
	return out
}

// OK reports whether the catalog passed validation.
func (r *Report) OK() bool { return r.Err() == nil }

// Err folds the failing issues into one error, or returns nil.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, i := range r.Issues {
		if i.Severity == SeverityError || r.Strict {
			result = multierror.Append(result, i)
		}
	}
	if result == nil {
		return nil
	}
	result.ErrorFormat = func(errs []error) string {
		lines := make([]string, 0, len(errs)+1)
		lines = append(lines, fmt.Sprintf("catalog has %d problem(s):", len(errs)))
		for _, err := range errs {
			lines = append(lines, "  * "+err.Error())
		}
		return strings.Join(lines, "\n")
	}
	return result.ErrorOrNil()
}

func (r *Report) add(s Severity, entry, field, format string, args ...interface{}) {
	r.Issues = append(r.Issues, Issue{Severity: s, Entry: entry, Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateOptions tunes Validate.
type ValidateOptions struct {
	// Strict turns warnings into failures.
	Strict bool
	// BaseDir resolves relative artifact paths when the catalog was not
	// loaded from a file.
	BaseDir string
}

// requiredSections lists keyword groups; a document needs one heading
// matching each group.
var requiredSections = []struct {
	name     string
	keywords []string
}{
	{"Installation", []string{"install", "安装"}},
	{"Usage", []string{"usage", "使用"}},
	{"License", []string{"license", "licence", "许可"}},
}

// Validate checks every entry and the document structure. It never stops at
// the first problem.
func Validate(ctx context.Context, c *Catalog, opts ValidateOptions) *Report {
	r := &Report{Strict: opts.Strict}
	base := baseDir(c, opts)
	log := logger.G(ctx).WithFields(logrus.Fields{"catalog": c.Path, "base_dir": base})

	seenNames := map[string]bool{}
	triggerOwner := map[string]string{}
	referenced := map[string]bool{}

	for _, e := range c.Entries {
		name := strings.TrimSpace(e.Name)
		label := name
		if label == "" {
			label = "<unnamed>"
		}

		if name == "" {
			r.add(SeverityError, label, "name", "must not be empty")
		} else if seenNames[name] {
			r.add(SeverityError, label, "name", "duplicate entry name")
		}
		seenNames[name] = true

		if strings.TrimSpace(e.Description) == "" {
			r.add(SeverityError, label, "description", "must not be empty")
		}
		if len(e.UseCases) == 0 {
			r.add(SeverityWarning, label, "use_cases", "no use cases listed")
		}

		checkTriggers(r, label, e.TriggerWords, triggerOwner)

		if rel, ok := checkArtifact(r, label, e.ArtifactPath, base); ok {
			referenced[rel] = true
		}
	}

	checkTable(r, c)
	checkSections(r, c)
	checkOrphans(r, base, referenced, log)

	log.WithFields(logrus.Fields{
		"entries":  len(c.Entries),
		"errors":   len(r.Errors()),
		"warnings": len(r.Warnings()),
	}).Debug("catalog validated")
	return r
}

func baseDir(c *Catalog, opts ValidateOptions) string {
	if c.Path != "" {
		return filepath.Dir(c.Path)
	}
	if opts.BaseDir != "" {
		return opts.BaseDir
	}
	return "."
}

func checkTriggers(r *Report, label string, words []string, owner map[string]string) {
	if len(words) == 0 {
		r.add(SeverityError, label, "trigger_words", "must list at least one trigger word")
		return
	}
	local := map[string]bool{}
	for _, w := range words {
		norm := normalizeTrigger(w)
		if norm == "" {
			r.add(SeverityError, label, "trigger_words", "contains an empty trigger word")
			continue
		}
		if local[norm] {
			r.add(SeverityError, label, "trigger_words", "duplicate trigger word %q", w)
			continue
		}
		local[norm] = true

		if other, exists := owner[norm]; exists && other != label {
			r.add(SeverityWarning, label, "trigger_words", "trigger word %q conflicts with entry %q", w, other)
			continue
		}
		owner[norm] = label
	}
}

// checkArtifact verifies the artifact reference and returns its path
// relative to base when it is a local file.
func checkArtifact(r *Report, label, ref, base string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		r.add(SeverityError, label, "artifact_path", "must not be empty")
		return "", false
	}

	path := ref
	if u, err := url.Parse(ref); err == nil && len(u.Scheme) > 1 {
		if u.Scheme != "file" {
			r.add(SeverityWarning, label, "artifact_path", "remote artifact %s cannot be verified", ref)
			return "", false
		}
		path = u.Path
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		r.add(SeverityError, label, "artifact_path", "artifact %s does not exist", ref)
		return "", false
	case err != nil:
		r.add(SeverityError, label, "artifact_path", "cannot stat artifact %s: %v", ref, err)
		return "", false
	case !info.Mode().IsRegular():
		r.add(SeverityError, label, "artifact_path", "artifact %s is not a regular file", ref)
		return "", false
	}

	rel, err := filepath.Rel(base, path)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func checkTable(r *Report, c *Catalog) {
	if c.tableNames == nil {
		if len(c.Entries) > 0 {
			r.add(SeverityWarning, "", "table", "document has no skills table")
		}
		return
	}
	inTable := map[string]bool{}
	for _, n := range c.tableNames {
		inTable[n] = true
	}
	inEntries := map[string]bool{}
	for _, e := range c.Entries {
		inEntries[e.Name] = true
		if !inTable[e.Name] {
			r.add(SeverityWarning, e.Name, "table", "entry is missing from the skills table")
		}
	}
	for _, n := range c.tableNames {
		if !inEntries[n] {
			r.add(SeverityWarning, "", "table", "table lists %q which has no entry", n)
		}
	}
}

func checkSections(r *Report, c *Catalog) {
	for _, req := range requiredSections {
		found := false
		for _, s := range c.Sections {
			heading := strings.ToLower(s.Heading)
			for _, kw := range req.keywords {
				if strings.Contains(heading, kw) {
					found = true
				}
			}
		}
		if !found {
			r.add(SeverityWarning, "", "sections", "missing %s section", req.name)
		}
	}
}

func checkOrphans(r *Report, base string, referenced map[string]bool, log *logrus.Entry) {
	matches, err := doublestar.Glob(os.DirFS(base), "**/*.skill")
	if err != nil {
		log.WithError(err).Debug("skipping orphan artifact scan")
		return
	}
	for _, m := range matches {
		if !referenced[m] {
			r.add(SeverityWarning, "", "artifacts", "%s is not referenced by any entry", m)
		}
	}
}
