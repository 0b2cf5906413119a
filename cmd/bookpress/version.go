package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/dgallion1/bookpress/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bookpress %s\n", version.Version)
		fmt.Printf("  Go:        %s\n", runtime.Version())
		fmt.Printf("  Generator: %s\n", version.Generator())
	},
}
