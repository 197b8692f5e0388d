package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"audioconv/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var logLevel string
	var outputFormat string

	cmd := &cobra.Command{
		Use:           "audioconv",
		Short:         "Audioconv converts uploaded audio to mp3 or ogg over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configLevel := ""
			if cfg != nil {
				configLevel = cfg.LogLevel
			}
			warning, err := configureLoggerForCLI(logLevel, configLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return setOutputFormat(outputFormat)
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "plain", "output format (plain, json, yaml)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newConvertCmd(cfg),
		newFetchCmd(cfg),
		newFormatsCmd(),
		newCheckCmd(cfg),
		newConfigCmd(cfg),
	)

	return cmd
}
