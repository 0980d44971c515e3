package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/deusflow/sandboxbot/internal/logger"
)

var version = "dev"

func main() {
	logger.Init()

	var root = &cobra.Command{
		Use:           "sandboxbot",
		Short:         "Telegram bot that collects news about regulatory sandboxes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCMD(), searchCMD(), versionCMD())

	if err := root.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func versionCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}
