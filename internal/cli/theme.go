package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raysh454/medtriage/internal/settings"
)

func newThemeCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|toggle]",
		Short:     "Show or change the display theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"light", "dark", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			var theme settings.Theme
			switch {
			case len(args) == 0:
				theme = a.Preferences.Theme(ctx)
			case args[0] == "toggle":
				if theme, err = a.Preferences.ToggleTheme(ctx); err != nil {
					return err
				}
			default:
				if theme, err = settings.ParseTheme(args[0]); err != nil {
					return err
				}
				if err := a.Preferences.SetTheme(ctx, theme); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme)
			return nil
		},
	}
}
