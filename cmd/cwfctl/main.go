package main

import (
	"os"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
