package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"laptop-price-predictor/internal/client"
	"laptop-price-predictor/internal/common"
	"laptop-price-predictor/internal/features"
	"laptop-price-predictor/internal/pricing"
)

type clientOptions struct {
	apiURL  string
	timeout time.Duration
}

func (o *clientOptions) bind(cmd *cobra.Command) {
	def := os.Getenv(common.EnvAPIURL)
	if def == "" {
		def = common.DefaultAPIURL
	}
	cmd.PersistentFlags().StringVar(&o.apiURL, "api-url", def, "Base URL of a running service (env "+common.EnvAPIURL+")")
	cmd.PersistentFlags().DurationVar(&o.timeout, "timeout", 30*time.Second, "Request timeout")
}

func (o *clientOptions) client() *client.Client {
	return client.New(o.apiURL, o.timeout)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// laptopFlags collects the feature flags of the predict command.
type laptopFlags struct {
	company, typeName, cpu, gpu, os string
	ram, hdd, ssd                   int
	weight, ppi                     float64
	touchscreen, ips                bool
	jsonInput                       string
}

func (f *laptopFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.company, "company", "", "Manufacturer")
	fl.StringVar(&f.typeName, "type", "", "Laptop type, e.g. Notebook")
	fl.IntVar(&f.ram, "ram", 0, "RAM in GB")
	fl.Float64Var(&f.weight, "weight", 0, "Weight in kg")
	fl.BoolVar(&f.touchscreen, "touchscreen", false, "Has a touchscreen")
	fl.BoolVar(&f.ips, "ips", false, "Has an IPS panel")
	fl.Float64Var(&f.ppi, "ppi", 0, "Pixel density")
	fl.StringVar(&f.cpu, "cpu", "", "CPU brand, e.g. \"Intel Core i5\"")
	fl.IntVar(&f.hdd, "hdd", 0, "HDD size in GB")
	fl.IntVar(&f.ssd, "ssd", 0, "SSD size in GB")
	fl.StringVar(&f.gpu, "gpu", "", "GPU brand")
	fl.StringVar(&f.os, "os", "", "Operating system")
	fl.StringVar(&f.jsonInput, "json", "", "Raw JSON features; other feature flags are ignored")
}

// payload builds the request body. Unset string flags are left out so the
// server reports them as missing.
func (f *laptopFlags) payload() (map[string]any, error) {
	if f.jsonInput != "" {
		var raw map[string]any
		if err := json.Unmarshal([]byte(f.jsonInput), &raw); err != nil {
			return nil, fmt.Errorf("invalid --json: %w", err)
		}
		return raw, nil
	}

	p := map[string]any{
		features.FieldRAM:         f.ram,
		features.FieldWeight:      f.weight,
		features.FieldTouchscreen: boolToInt(f.touchscreen),
		features.FieldIPS:         boolToInt(f.ips),
		features.FieldPPI:         f.ppi,
		features.FieldHDD:         f.hdd,
		features.FieldSSD:         f.ssd,
	}
	for field, v := range map[string]string{
		features.FieldCompany:  f.company,
		features.FieldTypeName: f.typeName,
		features.FieldCPUBrand: f.cpu,
		features.FieldGPUBrand: f.gpu,
		features.FieldOS:       f.os,
	} {
		if v != "" {
			p[field] = v
		}
	}
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func newPredictCmd(opts *clientOptions) *cobra.Command {
	flags := &laptopFlags{}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the price of a laptop",
		Example: `  laptopprice predict --company Dell --type Notebook --ram 8 --weight 2.2 --ips \
    --ppi 141.2 --cpu "Intel Core i5" --ssd 256 --gpu Intel --os Windows
  laptopprice predict --json '{"company":"Apple","type_name":"Ultrabook",...}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := flags.payload()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			res, err := opts.client().Predict(ctx, body)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Predicted price: %s\n", res.PriceFormatted)
			fmt.Fprintf(out, "Prediction ID:   %s\n", res.PredictionID)
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func newHistoryCmd(opts *clientOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent predictions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			records, err := opts.client().History(ctx, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No predictions stored.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tCOMPANY\tTYPE\tRAM\tPRICE\tID")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%dGB\t%s\t%s\n",
					humanize.Time(r.Timestamp), r.InputFeatures.Company, r.InputFeatures.TypeName,
					r.InputFeatures.RAM, r.PriceFormatted, r.PredictionID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", common.DefaultHistoryLimit, "Number of predictions to list")
	return cmd
}

func newGetCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <prediction-id>",
		Short: "Show one stored prediction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			rec, err := opts.client().Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func newStatsCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show prediction statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			stats, err := opts.client().Stats(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Predictions: %s\n", humanize.Comma(int64(stats.Count)))
			fmt.Fprintf(out, "Average:     %s\n", pricing.Format(stats.Price.AvgPrice))
			fmt.Fprintf(out, "Range:       %s - %s\n", pricing.Format(stats.Price.MinPrice), pricing.Format(stats.Price.MaxPrice))
			fmt.Fprintf(out, "Std dev:     %s\n\n", pricing.Format(stats.Price.StdDevPrice))

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COMPANY\tCOUNT\tAVERAGE\tMIN\tMAX")
			for _, cs := range stats.Companies {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", cs.Company, cs.Count,
					pricing.Format(cs.AvgPrice), pricing.Format(cs.MinPrice), pricing.Format(cs.MaxPrice))
			}
			return tw.Flush()
		},
	}
}

func newCleanupCmd(opts *clientOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete stored predictions older than a number of days",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			n, err := opts.client().Cleanup(ctx, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d predictions older than %d days\n", n, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Age threshold in days (1-365)")
	return cmd
}

func newCacheClearCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached prediction",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			msg, err := opts.client().ClearCache(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func newHealthCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the service is up",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			health, err := opts.client().Health(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), health)
		},
	}
}
