package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/jingkaihe/pipeskills/pkg/catalog"
	"github.com/jingkaihe/pipeskills/pkg/logger"
	"github.com/jingkaihe/pipeskills/pkg/presenter"
	"github.com/jingkaihe/pipeskills/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	errValidationFailed = errors.New("catalog validation failed")
	errNotFormatted     = errors.New("catalog is not formatted")
)

// CatalogValidateConfig holds the flags of catalog validate.
type CatalogValidateConfig struct {
	Strict   bool
	Watch    bool
	Debounce int
}

// NewCatalogValidateConfig returns the validate defaults.
func NewCatalogValidateConfig() *CatalogValidateConfig {
	return &CatalogValidateConfig{
		Strict:   false,
		Watch:    false,
		Debounce: 300,
	}
}

// CatalogFmtConfig holds the flags of catalog fmt.
type CatalogFmtConfig struct {
	Write bool
	Check bool
}

// CatalogInitConfig holds the flags of catalog init.
type CatalogInitConfig struct {
	From   string
	Output string
	Title  string
	Pack   bool
	Only   []string
}

// NewCatalogInitConfig returns the init defaults.
func NewCatalogInitConfig() *CatalogInitConfig {
	return &CatalogInitConfig{
		From:   "./skills",
		Output: "README.md",
		Title:  "Skills",
		Pack:   false,
	}
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and maintain the skill catalog document",
	Long: `Inspect and maintain the skill catalog document. The document path defaults
to catalog.path from the configuration (README.md).`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [doc]",
	Short: "Validate the catalog entries and document structure",
	Long: `Validate every catalog entry: required fields, trigger words and that each
artifact exists next to the document. Warnings fail validation with --strict.

Examples:
  pipeskills catalog validate
  pipeskills catalog validate docs/README.md --strict
  pipeskills catalog validate --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := getCatalogValidateConfigFromFlags(cmd)
		path := catalogPath(args)
		if config.Watch {
			return watchCatalog(cmd.Context(), path, config)
		}
		_, err := validateCatalog(cmd.Context(), path, config.Strict)
		return err
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list [doc]",
	Short: "List catalog entries",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		return listCatalog(cmd.OutOrStdout(), catalogPath(args), filter)
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one catalog entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, _ := cmd.Flags().GetString("doc")
		asJSON, _ := cmd.Flags().GetBool("json")
		if doc == "" {
			doc = catalogPath(nil)
		}
		return showEntry(cmd.OutOrStdout(), doc, args[0], asJSON)
	},
}

var catalogSectionCmd = &cobra.Command{
	Use:   "section <heading>",
	Short: "Print the body of a document section",
	Long: `Print the body of an H2 section of the catalog document, such as
Installation or Usage. The heading is matched case-insensitively.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, _ := cmd.Flags().GetString("doc")
		render, _ := cmd.Flags().GetBool("render")
		if doc == "" {
			doc = catalogPath(nil)
		}
		width := 0
		if render {
			width = terminalWidth()
		}
		return showSection(cmd.OutOrStdout(), doc, args[0], width)
	},
}

var catalogFmtCmd = &cobra.Command{
	Use:   "fmt [doc]",
	Short: "Rewrite the catalog document in canonical form",
	Long: `Render the catalog document in canonical form. Without flags the result is
printed; -w rewrites the file in place and --check prints a diff and fails
when the file is not formatted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := &CatalogFmtConfig{}
		config.Write, _ = cmd.Flags().GetBool("write")
		config.Check, _ = cmd.Flags().GetBool("check")
		return formatCatalog(cmd.OutOrStdout(), catalogPath(args), config)
	},
}

var catalogSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the catalog frontmatter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := catalog.SchemaJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

var catalogInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a catalog document from skill packages",
	Long: `Generate a catalog document from the SKILL.md packages found under --from.
Each entry points at <package>.skill next to the document; --pack builds
those artifacts as well.

Examples:
  pipeskills catalog init --from ./skills -o README.md --pack`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return initCatalog(cmd.Context(), getCatalogInitConfigFromFlags(cmd))
	},
}

func init() {
	validateDefaults := NewCatalogValidateConfig()
	catalogValidateCmd.Flags().Bool("strict", validateDefaults.Strict, "Treat warnings as failures")
	catalogValidateCmd.Flags().BoolP("watch", "w", validateDefaults.Watch, "Re-validate whenever the document or an artifact changes")
	catalogValidateCmd.Flags().Int("debounce", validateDefaults.Debounce, "Debounce time in milliseconds for file change events")
	viper.BindPFlag("catalog.strict", catalogValidateCmd.Flags().Lookup("strict"))

	catalogListCmd.Flags().StringP("filter", "f", "", "Glob pattern matched against entry names (case-insensitive)")

	catalogShowCmd.Flags().String("doc", "", "Catalog document (defaults to catalog.path)")
	catalogShowCmd.Flags().Bool("json", false, "Print the entry as JSON")

	catalogSectionCmd.Flags().String("doc", "", "Catalog document (defaults to catalog.path)")
	catalogSectionCmd.Flags().Bool("render", false, "Style the markdown for the terminal")

	catalogFmtCmd.Flags().BoolP("write", "w", false, "Write the result to the document instead of stdout")
	catalogFmtCmd.Flags().Bool("check", false, "Fail with a diff when the document is not formatted")
	catalogFmtCmd.MarkFlagsMutuallyExclusive("write", "check")

	initDefaults := NewCatalogInitConfig()
	catalogInitCmd.Flags().String("from", initDefaults.From, "Directory holding skill packages")
	catalogInitCmd.Flags().StringP("output", "o", initDefaults.Output, "Catalog document to create")
	catalogInitCmd.Flags().String("title", initDefaults.Title, "Document title")
	catalogInitCmd.Flags().Bool("pack", initDefaults.Pack, "Pack every skill into an artifact next to the document")
	catalogInitCmd.Flags().StringSlice("only", nil, "Only catalog the named skills")

	catalogCmd.AddCommand(catalogValidateCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogShowCmd)
	catalogCmd.AddCommand(catalogSectionCmd)
	catalogCmd.AddCommand(catalogFmtCmd)
	catalogCmd.AddCommand(catalogSchemaCmd)
	catalogCmd.AddCommand(catalogInitCmd)
}

func getCatalogValidateConfigFromFlags(cmd *cobra.Command) *CatalogValidateConfig {
	config := NewCatalogValidateConfig()
	config.Strict = appConfig.Catalog.Strict
	if watch, err := cmd.Flags().GetBool("watch"); err == nil {
		config.Watch = watch
	}
	if debounce, err := cmd.Flags().GetInt("debounce"); err == nil {
		config.Debounce = debounce
	}
	return config
}

func getCatalogInitConfigFromFlags(cmd *cobra.Command) *CatalogInitConfig {
	config := NewCatalogInitConfig()
	if from, err := cmd.Flags().GetString("from"); err == nil {
		config.From = from
	}
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}
	if title, err := cmd.Flags().GetString("title"); err == nil {
		config.Title = title
	}
	if pack, err := cmd.Flags().GetBool("pack"); err == nil {
		config.Pack = pack
	}
	if only, err := cmd.Flags().GetStringSlice("only"); err == nil {
		config.Only = only
	}
	return config
}

func catalogPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return appConfig.Catalog.Path
}

// validateCatalog loads and validates the document, printing every issue.
func validateCatalog(ctx context.Context, path string, strict bool) (*catalog.Report, error) {
	c, err := catalog.Load(path)
	if err != nil {
		return nil, err
	}

	report := catalog.Validate(ctx, c, catalog.ValidateOptions{Strict: strict})
	for _, issue := range report.Errors() {
		presenter.Error(issue, "")
	}
	for _, issue := range report.Warnings() {
		presenter.Warning(issue.Error())
	}

	logger.G(ctx).WithField("catalog", path).
		WithField("errors", len(report.Errors())).
		WithField("warnings", len(report.Warnings())).
		Debug("catalog validated")

	if err := report.Err(); err != nil {
		return report, errors.Wrapf(errValidationFailed, "%s: %d error(s), %d warning(s)", path, len(report.Errors()), len(report.Warnings()))
	}
	presenter.Success(fmt.Sprintf("%s: %d entries, %d warning(s)", path, len(c.Entries), len(report.Warnings())))
	return report, nil
}

func listCatalog(w io.Writer, path, filter string) error {
	c, err := catalog.Load(path)
	if err != nil {
		return err
	}
	entries := c.Entries
	if filter != "" {
		if entries, err = c.Filter(filter); err != nil {
			return err
		}
	}
	if len(entries) == 0 {
		presenter.Info("No matching entries")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTRIGGER WORDS\tARTIFACT")
	fmt.Fprintln(tw, "----\t-------------\t--------")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, strings.Join(e.TriggerWords, ", "), e.ArtifactPath)
	}
	return tw.Flush()
}

func showEntry(w io.Writer, path, name string, asJSON bool) error {
	c, err := catalog.Load(path)
	if err != nil {
		return err
	}
	e, err := c.Entry(name)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(e)
	}

	fmt.Fprintf(w, "Name:          %s\n", e.Name)
	fmt.Fprintf(w, "Description:   %s\n", e.Description)
	fmt.Fprintf(w, "Trigger words: %s\n", strings.Join(e.TriggerWords, ", "))
	fmt.Fprintf(w, "Artifact:      %s\n", e.ArtifactPath)
	if len(e.UseCases) > 0 {
		fmt.Fprintln(w, "Use cases:")
		for _, u := range e.UseCases {
			fmt.Fprintf(w, "  - %s\n", u)
		}
	}
	return nil
}

// showSection prints the section body, styled for a terminal of the given
// width when width is positive.
func showSection(w io.Writer, path, heading string, width int) error {
	c, err := catalog.Load(path)
	if err != nil {
		return err
	}
	section, ok := c.Section(heading)
	if !ok {
		return errors.Errorf("%s has no %q section", path, heading)
	}
	body := section.Body
	if width > 0 {
		body = renderMarkdown(body, width)
	}
	_, err = fmt.Fprintln(w, body)
	return err
}

func formatCatalog(w io.Writer, path string, config *CatalogFmtConfig) error {
	c, err := catalog.Load(path)
	if err != nil {
		return err
	}

	switch {
	case config.Check:
		diff, err := catalog.Diff(path, c)
		if err != nil {
			return err
		}
		if diff != "" {
			fmt.Fprint(w, diff)
			return errors.Wrap(errNotFormatted, path)
		}
		presenter.Success(fmt.Sprintf("%s is formatted", path))
		return nil
	case config.Write:
		if err := catalog.Write(path, c); err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Formatted %s", path))
		return nil
	default:
		data, err := catalog.Render(c)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
}

// selectSkills returns every discovered skill, or exactly the named ones when
// only is set. An unknown name is an error.
func selectSkills(ctx context.Context, discovery *skills.Discovery, only []string) (map[string]*skills.Skill, error) {
	if len(only) == 0 {
		found, err := discovery.DiscoverSkills(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to discover skills")
		}
		return found, nil
	}
	found := make(map[string]*skills.Skill, len(only))
	for _, name := range only {
		skill, err := discovery.GetSkill(ctx, name)
		if err != nil {
			return nil, errors.Wrapf(err, "--only names a skill not in %s", strings.Join(discovery.Dirs(), ", "))
		}
		found[name] = skill
	}
	return found, nil
}

func initCatalog(ctx context.Context, config *CatalogInitConfig) error {
	if _, err := os.Stat(config.Output); err == nil {
		return errors.Errorf("%s already exists", config.Output)
	}

	discovery, err := skills.NewDiscovery(skills.WithSkillDirs(config.From))
	if err != nil {
		return errors.Wrap(err, "failed to initialize skill discovery")
	}
	found, err := selectSkills(ctx, discovery, config.Only)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return errors.Errorf("no skill packages found in %s", config.From)
	}

	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)

	docDir := filepath.Dir(config.Output)
	c := &catalog.Catalog{
		Title: config.Title,
		Intro: "Skills for water supply network operations. Import a `.skill` artifact into the assistant platform to enable it.",
		Sections: []catalog.Section{
			{Heading: "Installation", Body: "Download the `.skill` artifact of a skill and import it on the assistant platform."},
			{Heading: "Usage", Body: "Mention one of the trigger words of a skill in a conversation to activate it."},
			{Heading: "License", Body: "See the LICENSE file of each skill package."},
		},
	}
	for _, name := range names {
		skill := found[name]
		artifact := skills.ArtifactName(skill.Directory)
		if config.Pack {
			count, err := skills.Pack(skill, filepath.Join(docDir, artifact))
			if err != nil {
				return errors.Wrapf(err, "failed to pack %s", name)
			}
			logger.G(ctx).WithField("skill", name).WithField("files", count).Debug("packed skill")
		}
		c.Entries = append(c.Entries, skill.Entry(artifact))
	}

	if err := catalog.Write(config.Output, c); err != nil {
		return err
	}
	presenter.Success(fmt.Sprintf("Wrote %s with %d entries", config.Output, len(c.Entries)))
	return nil
}
