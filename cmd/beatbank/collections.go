package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/llehouerou/beatbank/internal/catalog"
	"github.com/llehouerou/beatbank/internal/errmsg"
)

func newCollectionCommand(ctx *commandContext) *cobra.Command {
	collectionCmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"set"},
		Short:   "Manage collections of tracks",
	}

	collectionCmd.AddCommand(newCollectionAddCommand(ctx))
	collectionCmd.AddCommand(newCollectionListCommand(ctx))
	collectionCmd.AddCommand(newCollectionShowCommand(ctx))
	collectionCmd.AddCommand(newCollectionUpdateCommand(ctx))
	collectionCmd.AddCommand(newCollectionDeleteCommand(ctx))
	collectionCmd.AddCommand(newCollectionTracksCommand(ctx))

	return collectionCmd
}

type collectionFlags struct {
	name, venue, city, state, date string
}

func (f *collectionFlags) register(cmd *cobra.Command, withName bool) {
	if withName {
		cmd.Flags().StringVar(&f.name, "name", "", "Set name")
	}
	cmd.Flags().StringVar(&f.venue, "venue", "", "Venue")
	cmd.Flags().StringVar(&f.city, "city", "", "City")
	cmd.Flags().StringVar(&f.state, "state", "", "State or region")
	cmd.Flags().StringVar(&f.date, "date", "", "Date played")
}

func newCollectionAddCommand(ctx *commandContext) *cobra.Command {
	var f collectionFlags

	cmd := &cobra.Command{
		Use:   "add <set-name>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			nc := catalog.NewCollection{
				SetName:    args[0],
				Venue:      changedValue(flags.Changed("venue"), f.venue),
				City:       changedValue(flags.Changed("city"), f.city),
				StateName:  changedValue(flags.Changed("state"), f.state),
				DatePlayed: changedValue(flags.Changed("date"), f.date),
			}
			return ctx.withStore(func(store *catalog.Store) error {
				c, err := store.InsertCollection(cmd.Context(), nc)
				if err != nil {
					return opError(errmsg.OpCollectionAdd, args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created collection %d: %s\n", c.ID, c.SetName)
				return nil
			})
		},
	}

	f.register(cmd, false)
	return cmd
}

func newCollectionListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *catalog.Store) error {
				cols, err := store.ListCollections(cmd.Context())
				if err != nil {
					return opError(errmsg.OpCollectionList, "", err)
				}
				if asJSON {
					if cols == nil {
						cols = []catalog.Collection{}
					}
					return writeJSON(cmd, cols)
				}
				if len(cols) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No collections")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Venue", "City", "State", "Played", "Created"},
					buildCollectionRows(cols),
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func buildCollectionRows(cols []catalog.Collection) [][]string {
	rows := make([][]string, 0, len(cols))
	for i := range cols {
		c := &cols[i]
		rows = append(rows, []string{
			strconv.FormatInt(c.ID, 10),
			c.SetName,
			strOrDash(c.Venue),
			strOrDash(c.City),
			strOrDash(c.StateName),
			strOrDash(c.DatePlayed),
			formatCreated(c.DateCreated),
		})
	}
	return rows
}

func newCollectionShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <collection-id>",
		Short: "Show a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				c, err := store.Collection(cmd.Context(), id)
				if err != nil {
					return opError(errmsg.OpCollectionLoad, args[0], err)
				}
				if asJSON {
					return writeJSON(cmd, c)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderFields([][2]string{
					{"ID", strconv.FormatInt(c.ID, 10)},
					{"Name", c.SetName},
					{"Venue", strOrDash(c.Venue)},
					{"City", strOrDash(c.City)},
					{"State", strOrDash(c.StateName)},
					{"Played", strOrDash(c.DatePlayed)},
					{"Created", formatCreated(c.DateCreated)},
				}))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newCollectionUpdateCommand(ctx *commandContext) *cobra.Command {
	var f collectionFlags

	cmd := &cobra.Command{
		Use:   "update <collection-id>",
		Short: "Change collection fields; only the flags given are written",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			cs := catalog.CollectionChangeset{
				ID:         id,
				SetName:    changedValue(flags.Changed("name"), f.name),
				Venue:      changedValue(flags.Changed("venue"), f.venue),
				City:       changedValue(flags.Changed("city"), f.city),
				StateName:  changedValue(flags.Changed("state"), f.state),
				DatePlayed: changedValue(flags.Changed("date"), f.date),
			}
			return ctx.withStore(func(store *catalog.Store) error {
				if err := store.UpdateCollection(cmd.Context(), cs); err != nil {
					return opError(errmsg.OpCollectionUpdate, args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated collection %d\n", id)
				return nil
			})
		},
	}

	f.register(cmd, true)
	return cmd
}

func newCollectionDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection-id>",
		Short: "Delete a collection; its tracks stay in the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				if err := store.DeleteCollection(cmd.Context(), id); err != nil {
					return opError(errmsg.OpCollectionDelete, args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted collection %d\n", id)
				return nil
			})
		},
	}
}

func newCollectionTracksCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tracks <collection-id>",
		Short: "List the tracks of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				tracks, err := store.TracksInCollection(cmd.Context(), id)
				if err != nil {
					return opError(errmsg.OpMemberList, args[0], err)
				}
				if asJSON {
					if tracks == nil {
						tracks = []catalog.Track{}
					}
					return writeJSON(cmd, tracks)
				}
				if len(tracks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Collection is empty")
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

func newMemberCommand(ctx *commandContext) *cobra.Command {
	memberCmd := &cobra.Command{
		Use:   "member",
		Short: "Add or remove tracks in collections",
	}

	memberCmd.AddCommand(&cobra.Command{
		Use:   "add <collection-id> <track-id>",
		Short: "Put a track in a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collectionID, trackID, err := parseMemberArgs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				if err := store.AddMembership(cmd.Context(), collectionID, trackID); err != nil {
					return opError(errmsg.OpMemberAdd, args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added track %d to collection %d\n", trackID, collectionID)
				return nil
			})
		},
	})

	memberCmd.AddCommand(&cobra.Command{
		Use:   "remove <collection-id> <track-id>",
		Short: "Take a track out of a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collectionID, trackID, err := parseMemberArgs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				if err := store.RemoveMembership(cmd.Context(), collectionID, trackID); err != nil {
					return opError(errmsg.OpMemberRemove, args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed track %d from collection %d\n", trackID, collectionID)
				return nil
			})
		},
	})

	return memberCmd
}

func parseMemberArgs(args []string) (collectionID, trackID int64, err error) {
	if collectionID, err = parseID(args[0]); err != nil {
		return 0, 0, err
	}
	if trackID, err = parseID(args[1]); err != nil {
		return 0, 0, err
	}
	return collectionID, trackID, nil
}
