package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/beatscope/configs"
	"github.com/RyanBlaney/beatscope/internal/app"
)

var (
	configInitAudio string
	configInitForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create show files and inspect configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [show.yaml]",
	Short: "Write an annotated example show file",
	Long: `Write an example show file that schedules several scenes over a track.
The format follows the extension: .json writes JSON, anything else YAML.

Examples:
  beatscope config init
  beatscope config init --audio song.mp3 shows/song.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective application configuration",
	Long: `Print the configuration after defaults, the config file and BEATSCOPE_
environment variables are applied.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().StringVar(&configInitAudio, "audio", "song.mp3",
		"audio path written into the show")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false,
		"overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "show.yaml"
	if len(args) > 0 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := app.GenerateExampleShow(path, configInitAudio); err != nil {
		return err
	}

	abs, _ := filepath.Abs(path)
	printSuccess("wrote example show %s", abs)
	printInfo("check it with: beatscope timeline validate %s", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := configs.ValidateConfig(cfg); err != nil {
		printWarning("%v", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(stdout, "# config file: %s\n", used)
	} else {
		fmt.Fprintf(stdout, "# no config file found; defaults and environment only\n")
	}
	_, err = stdout.Write(data)
	return err
}
