package main

import (
	"cmp"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/llehouerou/beatbank/internal/catalog"
	"github.com/llehouerou/beatbank/internal/enrich"
	"github.com/llehouerou/beatbank/internal/errmsg"
	"github.com/llehouerou/beatbank/internal/tags"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var readTags bool
	var noEnrich bool

	cmd := &cobra.Command{
		Use:   "add <file> [title]",
		Short: "Add an audio file to the catalog and analyze it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath, err := filepath.Abs(args[0])
			if err != nil {
				return opError(errmsg.OpTrackAdd, args[0], err)
			}
			title := enrich.TitleFromPath(filePath)
			if len(args) == 2 {
				title = args[1]
			}

			return ctx.withStore(func(store *catalog.Store) error {
				var track *catalog.Track
				var analysisErr error
				if noEnrich {
					track, err = store.InsertTrack(cmd.Context(), title, filePath)
				} else {
					track, err = ctx.coordinator(store).Ingest(cmd.Context(), title, filePath)
					if err != nil && track != nil {
						analysisErr = err
						err = nil
					}
				}
				if err != nil {
					return opError(errmsg.OpTrackAdd, filePath, err)
				}

				if readTags {
					if err := applyTags(cmd, store, track.ID, filePath, len(args) == 2); err != nil {
						return err
					}
					id := track.ID
					if track, err = store.Track(cmd.Context(), id); err != nil {
						return opError(errmsg.OpTrackLoad, strconv.FormatInt(id, 10), err)
					}
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Added track %d: %s\n", track.ID, track.Title)
				if analysisErr != nil {
					return opError(errmsg.OpTrackEnrich, filePath, analysisErr)
				}
				if track.MusicalKey != nil && track.BPM != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Key %s, %s BPM\n", *track.MusicalKey, bpmOrDash(track.BPM))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&readTags, "tags", false, "Fill metadata from the file's embedded tags")
	cmd.Flags().BoolVar(&noEnrich, "no-enrich", false, "Skip key and tempo analysis")
	return cmd
}

// applyTags copies embedded tags onto track id. A title given on the command
// line wins over the tagged one.
func applyTags(cmd *cobra.Command, store *catalog.Store, id int64, filePath string, keepTitle bool) error {
	cs, err := tags.Read(filePath)
	if err != nil {
		return opError(errmsg.OpTrackTags, filePath, err)
	}
	cs.ID = id
	if keepTitle {
		cs.Title = nil
	}
	if err := store.UpdateTrack(cmd.Context(), cs); err != nil {
		return opError(errmsg.OpTrackUpdate, filePath, err)
	}
	return nil
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracks in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *catalog.Store) error {
				tracks, err := store.ListTracks(cmd.Context())
				if err != nil {
					return opError(errmsg.OpTrackList, "", err)
				}
				slices.SortStableFunc(tracks, func(a, b catalog.Track) int {
					return cmp.Compare(a.RowOrder, b.RowOrder)
				})
				if asJSON {
					if tracks == nil {
						tracks = []catalog.Track{}
					}
					return writeJSON(cmd, tracks)
				}
				if len(tracks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Catalog is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Order", "Title", "Artist", "Key", "BPM", "Length", "Added"},
					buildTrackRows(tracks),
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func buildTrackRows(tracks []catalog.Track) [][]string {
	rows := make([][]string, 0, len(tracks))
	for i := range tracks {
		t := &tracks[i]
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			strconv.Itoa(t.RowOrder),
			t.Title,
			strOrDash(t.Artist),
			strOrDash(t.MusicalKey),
			bpmOrDash(t.BPM),
			formatSeconds(t.Duration),
			formatCreated(t.DateCreated),
		})
	}
	return rows
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <track-id>",
		Short: "Show a track and the collections it belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				t, err := store.Track(cmd.Context(), id)
				if err != nil {
					return opError(errmsg.OpTrackLoad, args[0], err)
				}
				cols, err := store.CollectionsForTrack(cmd.Context(), id)
				if err != nil {
					return opError(errmsg.OpCollectionList, args[0], err)
				}
				if asJSON {
					if cols == nil {
						cols = []catalog.Collection{}
					}
					return writeJSON(cmd, struct {
						*catalog.Track
						Collections []catalog.Collection `json:"collections"`
					}{t, cols})
				}

				names := make([]string, 0, len(cols))
				for _, c := range cols {
					names = append(names, fmt.Sprintf("%s (#%d)", c.SetName, c.ID))
				}
				collections := strings.Join(names, ", ")
				if collections == "" {
					collections = "-"
				}

				fmt.Fprint(cmd.OutOrStdout(), renderFields([][2]string{
					{"ID", strconv.FormatInt(t.ID, 10)},
					{"Title", t.Title},
					{"Artist", strOrDash(t.Artist)},
					{"Album", strOrDash(t.Album)},
					{"Genre", strOrDash(t.Genre)},
					{"Year", intOrDash(t.Year)},
					{"Track", intOrDash(t.TrackNumber)},
					{"Length", formatSeconds(t.Duration)},
					{"Composer", strOrDash(t.Composer)},
					{"Lyricist", strOrDash(t.Lyricist)},
					{"Cover art", strOrDash(t.CoverArt)},
					{"Comments", strOrDash(t.Comments)},
					{"Key", strOrDash(t.MusicalKey)},
					{"BPM", bpmOrDash(t.BPM)},
					{"File", t.FilePath},
					{"Order", strconv.Itoa(t.RowOrder)},
					{"Added", formatCreated(t.DateCreated)},
					{"Collections", collections},
				}))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newUpdateCommand(ctx *commandContext) *cobra.Command {
	var (
		title, artist, album, genre      string
		composer, lyricist, cover, notes string
		key                              string
		year, trackNumber, duration      int
		bpm                              float64
	)

	cmd := &cobra.Command{
		Use:   "update <track-id>",
		Short: "Change track fields; only the flags given are written",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			cs := catalog.TrackChangeset{
				ID:          id,
				Title:       changedValue(flags.Changed("title"), title),
				Artist:      changedValue(flags.Changed("artist"), artist),
				Album:       changedValue(flags.Changed("album"), album),
				Genre:       changedValue(flags.Changed("genre"), genre),
				Year:        changedValue(flags.Changed("year"), year),
				TrackNumber: changedValue(flags.Changed("track-number"), trackNumber),
				Duration:    changedValue(flags.Changed("duration"), duration),
				Composer:    changedValue(flags.Changed("composer"), composer),
				Lyricist:    changedValue(flags.Changed("lyricist"), lyricist),
				CoverArt:    changedValue(flags.Changed("cover-art"), cover),
				Comments:    changedValue(flags.Changed("comments"), notes),
				BPM:         changedValue(flags.Changed("bpm"), bpm),
				MusicalKey:  changedValue(flags.Changed("key"), key),
			}

			return ctx.withStore(func(store *catalog.Store) error {
				if err := store.UpdateTrack(cmd.Context(), cs); err != nil {
					return opError(errmsg.OpTrackUpdate, args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated track %d\n", id)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&title, "title", "", "Title")
	f.StringVar(&artist, "artist", "", "Artist")
	f.StringVar(&album, "album", "", "Album")
	f.StringVar(&genre, "genre", "", "Genre")
	f.IntVar(&year, "year", 0, "Release year")
	f.IntVar(&trackNumber, "track-number", 0, "Track number")
	f.IntVar(&duration, "duration", 0, "Length in seconds")
	f.StringVar(&composer, "composer", "", "Composer")
	f.StringVar(&lyricist, "lyricist", "", "Lyricist")
	f.StringVar(&cover, "cover-art", "", "Cover art path")
	f.StringVar(&notes, "comments", "", "Comments")
	f.Float64Var(&bpm, "bpm", 0, "Tempo in beats per minute")
	f.StringVar(&key, "key", "", "Musical key")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <track-id>",
		Short: "Delete a track and its collection memberships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				if err := store.DeleteTrack(cmd.Context(), id); err != nil {
					return opError(errmsg.OpTrackDelete, args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted track %d\n", id)
				return nil
			})
		},
	}
}

func newReorderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <track-id>:<position>...",
		Short: "Set display positions; stops at the first unknown track",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := parseRowOrders(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				if err := store.Reorder(cmd.Context(), batch); err != nil {
					return opError(errmsg.OpTrackReorder, "", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reordered %d tracks\n", len(batch))
				return nil
			})
		},
	}
}

func parseRowOrders(args []string) ([]catalog.RowOrder, error) {
	batch := make([]catalog.RowOrder, 0, len(args))
	for _, arg := range args {
		idStr, posStr, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("invalid reorder entry %q: want <track-id>:<position>", arg)
		}
		id, err := parseID(idStr)
		if err != nil {
			return nil, err
		}
		pos, err := strconv.Atoi(posStr)
		if err != nil {
			return nil, fmt.Errorf("invalid position %q: %w", posStr, err)
		}
		batch = append(batch, catalog.RowOrder{ID: id, RowOrder: pos})
	}
	return batch, nil
}

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var pending bool

	cmd := &cobra.Command{
		Use:   "enrich [track-id...]",
		Short: "Analyze key and tempo for the given tracks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !pending && len(args) == 0 {
				return errors.New("give track ids or --pending")
			}
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			return ctx.withStore(func(store *catalog.Store) error {
				coord := ctx.coordinator(store)
				if pending {
					n, err := coord.EnrichPending(cmd.Context())
					fmt.Fprintf(cmd.OutOrStdout(), "Analyzed %d pending tracks\n", n)
					return opError(errmsg.OpTrackEnrich, "", err)
				}

				var errs []error
				for _, id := range ids {
					t, err := coord.Enrich(cmd.Context(), id)
					if err != nil {
						errs = append(errs, err)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Track %d: key %s, %s BPM\n",
						t.ID, strOrDash(t.MusicalKey), bpmOrDash(t.BPM))
				}
				return opError(errmsg.OpTrackEnrich, "", errors.Join(errs...))
			})
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "Analyze every track without key or tempo")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func changedValue[T any](changed bool, v T) *T {
	if !changed {
		return nil
	}
	return &v
}
