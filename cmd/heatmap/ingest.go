package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lucasjlepore/fit-heatmap/pipeline"
)

type ingestOutput struct {
	Handle   string           `json:"handle"`
	Result   *pipeline.Result `json:"result"`
	Snapshot string           `json:"snapshot,omitempty"`
	Parquet  string           `json:"parquet,omitempty"`
}

func newIngestCmd(a *app, v *viper.Viper) *cobra.Command {
	var (
		save        bool
		parquetPath string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Load every activity file in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, result, err := a.service.Ingest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := ingestOutput{Handle: handle, Result: result}

			if save {
				path, err := a.service.SaveSnapshot(handle, a.cfg.SnapshotDir)
				if err != nil {
					return err
				}
				out.Snapshot = path
			}
			if parquetPath != "" {
				if err := a.service.ExportParquet(handle, parquetPath); err != nil {
					return err
				}
				out.Parquet = parquetPath
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			return writeIngestText(cmd, out)
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "write a snapshot to the snapshot directory")
	cmd.Flags().String("snapshot-dir", ".", "directory for saved snapshots")
	cmd.Flags().StringVar(&parquetPath, "parquet", "", "also write all points to this Parquet file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	_ = v.BindPFlag(snapshotDirKey, cmd.Flags().Lookup("snapshot-dir"))

	return cmd
}

func writeIngestText(cmd *cobra.Command, out ingestOutput) error {
	years := make([]string, 0, len(out.Result.Years))
	for _, year := range out.Result.Years {
		years = append(years, fmt.Sprint(year))
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "handle:      %s\n", out.Handle)
	fmt.Fprintf(w, "files:       %d\n", out.Result.Files)
	fmt.Fprintf(w, "activities:  %d\n", out.Result.Activities)
	fmt.Fprintf(w, "years:       %s\n", strings.Join(years, ", "))
	fmt.Fprintf(w, "elapsed:     %s\n", out.Result.Elapsed)
	for _, skipped := range out.Result.Skipped {
		fmt.Fprintf(w, "skipped:     %s (%s)\n", skipped.Path, skipped.Reason)
	}
	if out.Snapshot != "" {
		fmt.Fprintf(w, "snapshot:    %s\n", out.Snapshot)
	}
	if out.Parquet != "" {
		fmt.Fprintf(w, "parquet:     %s\n", out.Parquet)
	}
	return nil
}
