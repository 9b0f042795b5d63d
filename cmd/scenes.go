package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/RyanBlaney/beatscope/internal/scene"
)

var titleCaser = cases.Title(language.English)

var scenesCmd = &cobra.Command{
	Use:   "scenes",
	Short: "List the built-in scenes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := scene.Builtins()
		printSection("Scenes")
		for _, name := range registry.Names() {
			printKeyValue(displayName(name)+" ("+name+")", registry.Describe(name))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scenesCmd)
}

// displayName turns a scene id like "beat_flash" into "Beat Flash"
func displayName(name string) string {
	return titleCaser.String(strings.NewReplacer("_", " ", "-", " ").Replace(name))
}
