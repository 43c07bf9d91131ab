package main

import (
	"os"

	"github.com/YuminosukeSato/emissions/cmd/cli"
)

func main() {
	os.Exit(cli.Execute())
}
