package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "hookwatch-cli",
	Short:   "Watch agent activity and forward hook payloads",
	Long:    color.CyanString("hookwatch") + "\nLive viewer and hook relay for a hookwatch server.",
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(emitCmd)
}
