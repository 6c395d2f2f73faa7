// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AMD-AGI/primus-papi/pkg/bootstrap"
)

var version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "papi",
		Short:   "Platform API brokering AI workloads onto the compute cluster",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				if err := os.Setenv("CONFIG_PATH", configPath); err != nil {
					return err
				}
			}
			return bootstrap.StartServer(context.Background())
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the config file (default config.yaml)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if startupErr, ok := err.(*bootstrap.StartupError); ok {
			os.Exit(startupErr.Code)
		}
		os.Exit(bootstrap.ExitBadConfig)
	}
}
