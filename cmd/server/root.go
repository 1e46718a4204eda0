package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	port     string
	envFile  string
	logLevel string

	rootCmd = &cobra.Command{
		Use:   "socratic-chat",
		Short: "Socratic chat relay",
		Long:  "Serve the chat page and relay conversations to the completion API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.Flags().StringVar(&port, "port", "", "Port to listen on (overrides PORT)")
	rootCmd.Flags().StringVar(&envFile, "env-file", "", "Env file to load instead of ./.env")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
