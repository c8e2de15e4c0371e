package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"laptop-price-predictor/internal/cfg"
	"laptop-price-predictor/internal/logging"
	"laptop-price-predictor/internal/storage"
)

const (
	formatJSONL = "jsonl"
	formatCSV   = "csv"
)

// csvHeader follows the reference dataset layout so exports can be compared
// with it directly.
var csvHeader = []string{
	"prediction_id", "timestamp",
	"Company", "TypeName", "Ram", "Weight", "Touchscreen", "Ips", "ppi",
	"Cpu brand", "HDD", "SSD", "Gpu brand", "os", "Price",
}

func newExportCmd() *cobra.Command {
	var (
		output  string
		format  string
		company string
		days    int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored predictions from the local store",
		Long: `Reads predictions straight from the configured store (STORE_DRIVER, STORE_DIR,
COLLECTION_NAME) and writes them as JSON lines or CSV, newest first.
Stop the server first when using the bolt driver; the file is locked while it runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatJSONL && format != formatCSV {
				return fmt.Errorf("unknown format %q, use %s or %s", format, formatJSONL, formatCSV)
			}

			c, err := cfg.Load()
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			closer, err := logging.Setup(logging.Options{Level: c.LogLevel, Console: true})
			if err != nil {
				return err
			}
			defer closer.Close()

			repo, err := initializeStorage(c)
			if err != nil {
				return err
			}
			defer repo.Close()

			records, err := loadForExport(cmd.Context(), repo, company, days)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				log.Warn().Msg("No records found matching criteria")
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			if err := writeExport(w, records, format); err != nil {
				return err
			}
			log.Info().Int("records", len(records)).Str("output", output).Msg("Export finished")
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (stdout when empty)")
	cmd.Flags().StringVar(&format, "format", formatJSONL, "Output format: jsonl or csv")
	cmd.Flags().StringVar(&company, "company", "", "Only export this manufacturer")
	cmd.Flags().IntVar(&days, "days", 0, "Only export the last N days (0 for all)")
	return cmd
}

func loadForExport(ctx context.Context, repo storage.Repository, company string, days int) ([]storage.Record, error) {
	var (
		records []storage.Record
		err     error
	)
	if company != "" {
		records, err = repo.FindByCompany(ctx, company, 0)
	} else {
		records, err = repo.FindAll(ctx, 0, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read predictions: %w", err)
	}
	if days <= 0 {
		return records, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	kept := records[:0]
	for _, r := range records {
		if !r.Timestamp.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

func writeExport(w io.Writer, records []storage.Record, format string) error {
	if format == formatJSONL {
		enc := json.NewEncoder(w)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("failed to write JSON record: %w", err)
			}
		}
		return nil
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		f := r.InputFeatures
		row := []string{
			r.PredictionID,
			r.Timestamp.Format(time.RFC3339),
			f.Company,
			f.TypeName,
			strconv.Itoa(f.RAM),
			strconv.FormatFloat(f.Weight, 'f', -1, 64),
			strconv.Itoa(f.Touchscreen),
			strconv.Itoa(f.IPS),
			strconv.FormatFloat(f.PPI, 'f', -1, 64),
			f.CPUBrand,
			strconv.Itoa(f.HDD),
			strconv.Itoa(f.SSD),
			f.GPUBrand,
			f.OS,
			strconv.FormatFloat(r.OutputPrediction, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
