// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianForge/pkg/logging"
	"github.com/AleutianAI/AleutianForge/services/forge/config"
)

var (
	configPath string

	cfg    config.Config
	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "forge",
		Short: "A cli for incremental code changes and app version management",
		Long: `Forge manages incremental code changes for generated applications:
semantic diffs between file revisions, update plans with dependency
ordering, and an append-only version tree with branching and merging.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error loading config %s: %v\n", configPath, err)
					os.Exit(1)
				}
				cfg = loaded
			}
			logger = logging.New(logging.Config{
				Level:   logging.ParseLevel(cfg.Logging.Level),
				LogDir:  cfg.Logging.Dir,
				Service: "forge",
				JSON:    cfg.Logging.JSON,
			})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a forge.yaml configuration file (defaults apply when omitted)")

	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(treeCmd)
}
