// Package main provides the cryptlog CLI application.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		Logger.Errorf("%s", userMessage(err))
		os.Exit(1)
	}
}
