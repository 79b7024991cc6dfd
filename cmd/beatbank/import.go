package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/llehouerou/beatbank/internal/catalog"
	"github.com/llehouerou/beatbank/internal/errmsg"
	"github.com/llehouerou/beatbank/internal/library"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var workers int
	var noEnrich bool

	cmd := &cobra.Command{
		Use:   "import <dir|file>...",
		Short: "Add every new audio file under the given paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *catalog.Store) error {
				ingest := library.IngestFunc(store.InsertTrack)
				if !noEnrich {
					ingest = ctx.coordinator(store).Ingest
				}
				im := library.NewImporter(store, ingest,
					library.WithWorkers(workers),
					library.WithLogger(ctx.log.Named("import")))

				stats, err := im.Import(cmd.Context(), args, nil)
				if err != nil {
					return opError(errmsg.OpTrackImport, "", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Added %d, skipped %d, without analysis %d, failed %d\n",
					len(stats.Added), len(stats.Skipped), len(stats.Unanalyzed), len(stats.Failed))

				failed := make([]string, 0, len(stats.Failed))
				for path := range stats.Failed {
					failed = append(failed, path)
				}
				sort.Strings(failed)
				for _, path := range failed {
					fmt.Fprintln(out, errmsg.FormatWith(errmsg.OpTrackAdd, path, stats.Failed[path]))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "j", 4, "Files ingested in parallel")
	cmd.Flags().BoolVar(&noEnrich, "no-enrich", false, "Skip key and tempo analysis")
	return cmd
}
