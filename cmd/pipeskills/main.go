package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jingkaihe/pipeskills/pkg/config"
	"github.com/jingkaihe/pipeskills/pkg/logger"
	"github.com/jingkaihe/pipeskills/pkg/presenter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// configErr is reported by the first command that runs; init cannot fail.
	configErr error
	// appConfig is loaded and validated before any command runs.
	appConfig config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pipeskills",
	Short: "Catalog, validate and run water supply network skills",
	Long: `pipeskills maintains the skill catalog document of a water supply network
skill collection, packs skill packages into .skill artifacts and runs the
analysis tools the skills bundle (leakage, inspection, work orders, assets).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if configErr != nil {
			return configErr
		}
		cfg, err := config.GetConfigFromViper()
		if err != nil {
			return err
		}
		appConfig = cfg
		if err := logger.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
			return err
		}
		ctx := logger.WithFields(cmd.Context(), map[string]interface{}{"command": cmd.CommandPath()})
		cmd.SetContext(ctx)

		flags := map[string]interface{}{}
		cmd.Flags().Visit(func(flag *pflag.Flag) {
			flags["flag."+flag.Name] = flag.Value.String()
		})
		logger.G(ctx).WithFields(flags).Debug("running command")
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

func init() {
	configErr = config.InitConfig()

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt or json)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress informational output")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(skillCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)

	cobra.OnInitialize(func() {
		if quiet, err := rootCmd.PersistentFlags().GetBool("quiet"); err == nil {
			presenter.SetQuiet(quiet)
		}
	})
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		presenter.Error(err, "")
		cancel()
		os.Exit(1)
	}
}
