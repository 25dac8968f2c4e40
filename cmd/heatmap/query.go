package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	heatmap "github.com/lucasjlepore/fit-heatmap"
)

func newYearsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "years <snapshot>",
		Short: "List the years present in a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := a.service.LoadSnapshot(args[0])
			if err != nil {
				return err
			}
			years, err := a.service.Years(handle)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(years)
			}
			for _, year := range years {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), year); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print years as a JSON array")
	return cmd
}

func newPointsCmd(a *app) *cobra.Command {
	var (
		year   int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "points <snapshot>",
		Short: "Print the points of a snapshot, optionally for one year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := a.service.LoadSnapshot(args[0])
			if err != nil {
				return err
			}

			var points []heatmap.Sample
			if cmd.Flags().Changed("year") {
				points, err = a.service.Points(handle, year)
			} else {
				points, err = a.service.AllPoints(handle)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(points)
			}
			return writePointsCSV(cmd, points)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "only print points from this year")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print points as JSON")
	return cmd
}

func writePointsCSV(cmd *cobra.Command, points []heatmap.Sample) error {
	w := csv.NewWriter(cmd.OutOrStdout())
	if err := w.Write([]string{"lat", "lng", "timestamp_s", "count"}); err != nil {
		return err
	}
	for _, p := range points {
		row := []string{
			strconv.FormatFloat(p.Lat, 'f', -1, 64),
			strconv.FormatFloat(p.Lng, 'f', -1, 64),
			strconv.FormatInt(p.Timestamp, 10),
			strconv.Itoa(int(p.Count)),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func newParquetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parquet <snapshot> <out>",
		Short: "Write the points of a snapshot to a Parquet file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := a.service.LoadSnapshot(args[0])
			if err != nil {
				return err
			}
			if err := a.service.ExportParquet(handle, args[1]); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), args[1])
			return err
		},
	}
}
