// Package cli wires the school server commands.
package cli

import (
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/spf13/cobra"

	"school-server-go/config"
)

var logger = loggo.GetLogger("school.cli")

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "school-server",
	Short: "REST backend for school staff and student records",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.LoadConfig(configFile)
		if err != nil {
			return err
		}
		if err := loggo.ConfigureLoggers(loaded.Log.Levels); err != nil {
			return errors.Annotate(err, "configuring loggers")
		}
		cfg = loaded
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}
