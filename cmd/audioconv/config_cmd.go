package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"audioconv/internal/config"
)

func newConfigCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change audioconv settings",
	}
	cmd.AddCommand(
		newConfigGetCmd(cfg),
		newConfigListCmd(cfg),
		newConfigSetCmd(),
		newConfigPathCmd(),
	)
	return cmd
}

func requireKnownKey(key string) error {
	if config.IsAllowedKey(key) {
		return nil
	}
	return fmt.Errorf("unknown key: %s (allowed: %s)", key, strings.Join(config.AllowedKeys(), ", "))
}

func newConfigGetCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := requireKnownKey(key); err != nil {
				return err
			}
			value, err := cfg.Get(key)
			if err != nil {
				return err
			}
			return writeResult(map[string]string{key: value}, func() error {
				return writePlain("%s\n", value)
			})
		},
	}
}

func newConfigListCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every effective setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values := cfg.Values()
			return writeResult(values, func() error {
				keys := make([]string, 0, len(values))
				for key := range values {
					keys = append(keys, key)
				}
				slices.Sort(keys)
				for _, key := range keys {
					if err := writePlain("%s = %s\n", key, values[key]); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

type configWrite struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	File  string `json:"file"`
}

func newConfigSetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist a setting to the project or global config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if err := requireKnownKey(key); err != nil {
				return err
			}
			path, err := configTarget(global)
			if err != nil {
				return err
			}
			if err := config.SetKey(path, key, value); err != nil {
				return err
			}
			written := configWrite{Key: key, Value: value, File: path}
			return writeResult(written, func() error {
				return writePlain("%s = %s (%s)\n", key, value, path)
			})
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "write to the global config (~/"+config.ConfigFileName+")")
	return cmd
}

type configPaths struct {
	Global  string `json:"global"`
	Project string `json:"project"`
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where config files are read from and written to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			global, err := configTarget(true)
			if err != nil {
				return err
			}
			project, err := configTarget(false)
			if err != nil {
				return err
			}
			paths := configPaths{Global: global, Project: project}
			return writeResult(paths, func() error {
				return writePlain("global: %s\nproject: %s\n", paths.Global, paths.Project)
			})
		},
	}
}

func configTarget(global bool) (string, error) {
	if global {
		return config.GlobalPath()
	}
	return config.ProjectPath()
}
