// Package main is the entry point for the indiepub server.
package main

import (
	"os"

	"github.com/indiepub/indiepub/cmd/indiepub/app"
	"github.com/indiepub/indiepub/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
