package main

import (
	"embed"
	"os"

	"github.com/haveachin/proxypass/cmd"
)

//go:embed configs
var files embed.FS

// set via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := cmd.Execute(files, version); err != nil {
		os.Exit(1)
	}
}
