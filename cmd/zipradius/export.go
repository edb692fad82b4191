package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type exportOptions struct {
	radius  float64
	out     string
	format  string
	workers int
}

func newExportCmd(c *cli) *cobra.Command {
	opts := exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the neighbor list of every postal code to a file",
		Long: `Computes, for every postal code in the reference data, the codes within
--radius miles of it and writes the result as a JSON object keyed by code
or as CSV rows of "code, comma separated neighbors".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.export(cmd, opts)
		},
	}
	cmd.Flags().Float64Var(&opts.radius, "radius", 25, "neighbor radius in miles")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "NearbyZipCodes.json", "output file, - for stdout")
	cmd.Flags().StringVar(&opts.format, "format", "json", "output format: json or csv")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "worker goroutines, 0 = 4 per CPU")
	return cmd
}

func (c *cli) export(cmd *cobra.Command, opts exportOptions) error {
	if opts.format != "json" && opts.format != "csv" {
		return fmt.Errorf("invalid format %q (valid: json, csv)", opts.format)
	}

	a, err := c.newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	neighbors, err := a.svc.AllNeighbors(cmd.Context(), opts.radius, opts.workers)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if opts.out != "-" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("could not create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if opts.format == "csv" {
		err = writeNeighborsCSV(w, neighbors)
	} else {
		err = writeNeighborsJSON(w, neighbors)
	}
	if err != nil {
		return fmt.Errorf("could not write neighbor data: %w", err)
	}

	c.logger.Info("exported neighbor lists",
		zap.String("out", opts.out),
		zap.Int("codes", len(neighbors)),
		zap.Duration("took", time.Since(start)))
	return nil
}

func writeNeighborsJSON(w io.Writer, neighbors map[string][]string) error {
	data, err := json.MarshalIndent(neighbors, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// writeNeighborsCSV writes one row per code, in code order.
func writeNeighborsCSV(w io.Writer, neighbors map[string][]string) error {
	codes := make([]string, 0, len(neighbors))
	for code := range neighbors {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	cw := csv.NewWriter(w)
	for _, code := range codes {
		if err := cw.Write([]string{code, strings.Join(neighbors[code], ",")}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
