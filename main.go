package main

import (
	"os"

	"github.com/tanpawarit/outfitters-agent/cmd"
	_ "github.com/tanpawarit/outfitters-agent/pkg/logger/autoload"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
