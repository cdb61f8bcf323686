package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jingkaihe/pipeskills/pkg/presenter"
	"github.com/jingkaihe/pipeskills/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// SkillPackConfig holds the flags of skill pack.
type SkillPackConfig struct {
	Output string
}

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Work with skill packages",
	Long:  `List skill source packages (directories holding SKILL.md) and pack them into .skill artifacts.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List skill packages",
	Long:  `List the skill packages found in the skill directories (skills.dirs, ./skills by default).`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dirs := appConfig.Skills.Dirs
		if cmd.Flags().Changed("dir") {
			dirs, _ = cmd.Flags().GetStringSlice("dir")
		}
		return listSkills(cmd.Context(), cmd.OutOrStdout(), dirs)
	},
}

var skillPackCmd = &cobra.Command{
	Use:   "pack <skill-dir>",
	Short: "Pack a skill package into a .skill artifact",
	Long: `Pack a skill package directory into a .skill artifact (a zip archive with
the package directory at its root).

Examples:
  pipeskills skill pack skills/leak-analyzer
  pipeskills skill pack skills/leak-analyzer -o dist/leak-analyzer.skill`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := &SkillPackConfig{}
		config.Output, _ = cmd.Flags().GetString("output")
		_, err := packSkill(args[0], config)
		return err
	},
}

func init() {
	skillListCmd.Flags().StringSliceP("dir", "d", nil, "Skill directories to search (overrides skills.dirs)")
	skillPackCmd.Flags().StringP("output", "o", "", "Artifact path (defaults to <skill-dir name>.skill)")

	skillCmd.AddCommand(skillListCmd)
	skillCmd.AddCommand(skillPackCmd)
}

func listSkills(ctx context.Context, w io.Writer, dirs []string) error {
	var opts []skills.Option
	if len(dirs) > 0 {
		opts = append(opts, skills.WithSkillDirs(dirs...))
	}
	discovery, err := skills.NewDiscovery(opts...)
	if err != nil {
		return errors.Wrap(err, "failed to initialize skill discovery")
	}
	names, err := discovery.ListSkillNames(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to list skills")
	}
	if len(names) == 0 {
		presenter.Info("No skills found in " + strings.Join(discovery.Dirs(), ", "))
		return nil
	}
	allSkills, err := discovery.DiscoverSkills(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to discover skills")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDIRECTORY\tDESCRIPTION")
	fmt.Fprintln(tw, "----\t---------\t-----------")
	for _, name := range names {
		skill, ok := allSkills[name]
		if !ok {
			continue
		}
		description := []rune(skill.Description)
		if len(description) > 60 {
			description = append(description[:57], []rune("...")...)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", skill.Name, skill.Directory, string(description))
	}
	return tw.Flush()
}

func packSkill(dir string, config *SkillPackConfig) (string, error) {
	skill, err := skills.LoadSkill(dir)
	if err != nil {
		return "", err
	}
	out := config.Output
	if out == "" {
		out = skills.ArtifactName(dir)
	}
	count, err := skills.Pack(skill, out)
	if err != nil {
		return "", err
	}
	presenter.Success(fmt.Sprintf("Packed %s (%d files) into %s", skill.Name, count, out))
	return out, nil
}
