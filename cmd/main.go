package main

import (
	"os"

	"gitlab.com/arbfn-2025.net/cmd/command"
	logger2 "gitlab.com/arbfn-2025.net/internal/global/logger"
)

func main() {
	if err := command.NewRootCommand().Execute(); err != nil {
		logger2.Error("Command failed", "error", err)
		logger2.Sync()
		os.Exit(1)
	}
	logger2.Sync()
}
