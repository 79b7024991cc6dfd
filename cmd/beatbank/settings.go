package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llehouerou/beatbank/internal/errmsg"
	"github.com/llehouerou/beatbank/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change user preferences",
	}

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := ctx.settingsPath()
			if err != nil {
				return opError(errmsg.OpSettingsLoad, "", err)
			}
			s := settings.Load(path)
			fmt.Fprint(cmd.OutOrStdout(), renderFields([][2]string{
				{"Theme", s.Theme},
				{"File", path},
			}))
			return nil
		},
	})

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "set-theme <theme>",
		Short: "Store the UI theme preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := ctx.settingsPath()
			if err != nil {
				return opError(errmsg.OpSettingsSave, "", err)
			}
			s := settings.Load(path)
			s.Theme = args[0]
			if err := settings.Save(path, s); err != nil {
				return opError(errmsg.OpSettingsSave, path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Theme set to %s\n", s.Theme)
			return nil
		},
	})

	return settingsCmd
}
