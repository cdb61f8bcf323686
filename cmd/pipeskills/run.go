package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jingkaihe/pipeskills/pkg/asset"
	"github.com/jingkaihe/pipeskills/pkg/inspection"
	"github.com/jingkaihe/pipeskills/pkg/leakage"
	"github.com/jingkaihe/pipeskills/pkg/presenter"
	"github.com/jingkaihe/pipeskills/pkg/report"
	"github.com/jingkaihe/pipeskills/pkg/workorder"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RunConfig holds the flags shared by every analysis tool.
type RunConfig struct {
	Input string
	JSON  string
	Now   time.Time
}

// RecordFilter narrows inspection and work order records.
type RecordFilter struct {
	From      string
	To        string
	Area      string
	Inspector string
	Type      string
	Status    string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a bundled analysis tool on a JSON or YAML dataset",
	Long: `Run one of the analysis tools bundled with the skills. Each tool prints a
text report and, with --json, writes its statistics to a JSON file.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var runLeakCmd = &cobra.Command{
	Use:   "leak",
	Short: "DMA leakage, minimum night flow and pressure anomalies",
	Long: `Analyze District Metered Area balances. The input holds "dmas"
({id, total_flow, user_flows}) and optional "flow_samples" ({time, flow}) and
"pressure_samples" ({time, pressure}).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dma, _ := cmd.Flags().GetString("dma")
		opts := leakage.Options{
			MNFStartHour:      appConfig.Leak.MNFStartHour,
			MNFEndHour:        appConfig.Leak.MNFEndHour,
			PressureThreshold: appConfig.Leak.PressureThreshold,
		}
		return runLeak(cmd.OutOrStdout(), getRunConfigFromFlags(cmd), dma, opts)
	},
}

var runInspectionCmd = &cobra.Command{
	Use:   "inspection",
	Short: "Patrol inspection statistics",
	Long:  `Summarize patrol inspection records (the "inspections" list).`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runInspection(cmd.Context(), cmd.OutOrStdout(), getRunConfigFromFlags(cmd), getRecordFilterFromFlags(cmd))
	},
}

var runWorkOrderCmd = &cobra.Command{
	Use:   "workorder",
	Short: "Maintenance work order statistics",
	Long:  `Summarize maintenance work orders (the "work_orders" list).`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := workorder.Options{
			OverdueHours: appConfig.WorkOrder.OverdueHours,
			TrendDays:    appConfig.WorkOrder.TrendDays,
		}
		return runWorkOrder(cmd.OutOrStdout(), getRunConfigFromFlags(cmd), getRecordFilterFromFlags(cmd), opts)
	},
}

var runAssetCmd = &cobra.Command{
	Use:   "asset",
	Short: "Equipment ledger statistics",
	Long:  `Summarize the equipment ledger (the "assets" list); missing net values are depreciated on load.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := asset.Options{
			OverdueDays:       appConfig.Asset.OverdueDays,
			ReplacementMinAge: appConfig.Asset.ReplacementMinAge,
		}
		return runAsset(cmd.Context(), cmd.OutOrStdout(), getRunConfigFromFlags(cmd), opts)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{runLeakCmd, runInspectionCmd, runWorkOrderCmd, runAssetCmd} {
		cmd.Flags().StringP("input", "i", "", "Input dataset (.json, .yaml or .yml)")
		cmd.Flags().String("json", "", "Also write the statistics as JSON to this file")
		cmd.MarkFlagRequired("input")
		runCmd.AddCommand(cmd)
	}

	runLeakCmd.Flags().String("dma", "", "Report a single DMA")
	runLeakCmd.Flags().Int("mnf-start", 2, "First hour of the minimum night flow window")
	runLeakCmd.Flags().Int("mnf-end", 4, "Hour the minimum night flow window ends (exclusive)")
	runLeakCmd.Flags().Float64("threshold", 0.15, "Relative pressure deviation flagged as an anomaly")
	viper.BindPFlag("leak.mnf_start_hour", runLeakCmd.Flags().Lookup("mnf-start"))
	viper.BindPFlag("leak.mnf_end_hour", runLeakCmd.Flags().Lookup("mnf-end"))
	viper.BindPFlag("leak.pressure_threshold", runLeakCmd.Flags().Lookup("threshold"))

	for _, cmd := range []*cobra.Command{runInspectionCmd, runWorkOrderCmd} {
		cmd.Flags().String("from", "", "First date to include (YYYY-MM-DD)")
		cmd.Flags().String("to", "", "Last date to include (YYYY-MM-DD)")
		cmd.Flags().String("area", "", "Only records of this area")
	}
	runInspectionCmd.Flags().String("inspector", "", "Only records of this inspector")
	runWorkOrderCmd.Flags().String("type", "", "Only orders of this type")
	runWorkOrderCmd.Flags().String("status", "", "Only orders with this status")

	runWorkOrderCmd.Flags().Float64("overdue-hours", workorder.DefaultOverdueHours, "Hours after which an open order is overdue")
	runWorkOrderCmd.Flags().Int("trend-days", workorder.DefaultTrendDays, "Days covered by the trend")
	viper.BindPFlag("workorder.overdue_hours", runWorkOrderCmd.Flags().Lookup("overdue-hours"))
	viper.BindPFlag("workorder.trend_days", runWorkOrderCmd.Flags().Lookup("trend-days"))

	runAssetCmd.Flags().Int("overdue-days", asset.DefaultOverdueDays, "Days of delay after which maintenance is overdue")
	runAssetCmd.Flags().Float64("replacement-min-age", asset.DefaultReplacementMinAge, "Age in years from which an asset is a replacement candidate")
	viper.BindPFlag("asset.overdue_days", runAssetCmd.Flags().Lookup("overdue-days"))
	viper.BindPFlag("asset.replacement_min_age", runAssetCmd.Flags().Lookup("replacement-min-age"))
}

func getRunConfigFromFlags(cmd *cobra.Command) *RunConfig {
	config := &RunConfig{Now: time.Now()}
	if input, err := cmd.Flags().GetString("input"); err == nil {
		config.Input = input
	}
	if out, err := cmd.Flags().GetString("json"); err == nil {
		config.JSON = out
	}
	return config
}

func getRecordFilterFromFlags(cmd *cobra.Command) *RecordFilter {
	filter := &RecordFilter{}
	for name, dst := range map[string]*string{
		"from":      &filter.From,
		"to":        &filter.To,
		"area":      &filter.Area,
		"inspector": &filter.Inspector,
		"type":      &filter.Type,
		"status":    &filter.Status,
	} {
		if v, err := cmd.Flags().GetString(name); err == nil {
			*dst = v
		}
	}
	return filter
}

// dateRange fills an open end of the range so a single bound still filters.
func (f *RecordFilter) dateRange() (string, string, bool) {
	if f.From == "" && f.To == "" {
		return "", "", false
	}
	from, to := f.From, f.To
	if from == "" {
		from = "0001-01-01"
	}
	if to == "" {
		to = "9999-12-31"
	}
	return from, to, true
}

func runLeak(w io.Writer, config *RunConfig, dma string, opts leakage.Options) error {
	in, err := leakage.LoadInput(config.Input)
	if err != nil {
		return err
	}
	out, err := in.Report(dma, opts, config.Now)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)

	if config.JSON == "" {
		return nil
	}
	analysis, err := in.Analyze(opts, config.Now)
	if err != nil {
		return err
	}
	return writeJSONFile(config.JSON, analysis)
}

func runInspection(ctx context.Context, w io.Writer, config *RunConfig, filter *RecordFilter) error {
	records, err := inspection.LoadRecords(config.Input)
	if err != nil {
		return err
	}
	if from, to, ok := filter.dateRange(); ok {
		if records, err = inspection.FilterByDateRange(records, from, to); err != nil {
			return err
		}
	}
	if filter.Area != "" {
		records = inspection.FilterByArea(records, filter.Area)
	}
	if filter.Inspector != "" {
		records = inspection.FilterByInspector(records, filter.Inspector)
	}

	stats := inspection.Statistics(ctx, records)
	fmt.Fprintln(w, inspection.Report(stats, config.Now))

	if config.JSON == "" {
		return nil
	}
	return writeJSONFile(config.JSON, stats)
}

func runWorkOrder(w io.Writer, config *RunConfig, filter *RecordFilter, opts workorder.Options) error {
	orders, err := workorder.LoadOrders(config.Input)
	if err != nil {
		return err
	}
	if from, to, ok := filter.dateRange(); ok {
		if orders, err = workorder.FilterByDateRange(orders, from, to); err != nil {
			return err
		}
	}
	if filter.Type != "" {
		orders = workorder.FilterByType(orders, filter.Type)
	}
	if filter.Status != "" {
		orders = workorder.FilterByStatus(orders, filter.Status)
	}
	if filter.Area != "" {
		orders = workorder.FilterByArea(orders, filter.Area)
	}

	out, err := workorder.Report(orders, opts, config.Now)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)

	if config.JSON == "" {
		return nil
	}
	exp, err := workorder.BuildExport(orders, opts, config.Now)
	if err != nil {
		return err
	}
	return writeJSONFile(config.JSON, exp)
}

func runAsset(ctx context.Context, w io.Writer, config *RunConfig, opts asset.Options) error {
	assets, err := asset.LoadAssets(config.Input)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, asset.Report(ctx, assets, opts, config.Now))

	if config.JSON == "" {
		return nil
	}
	return writeJSONFile(config.JSON, asset.BuildExport(ctx, assets, opts, config.Now))
}

func writeJSONFile(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create JSON output")
	}
	if err := report.WriteJSON(f, v); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "failed to write JSON output")
	}
	presenter.Success("Statistics exported to " + path)
	return nil
}
