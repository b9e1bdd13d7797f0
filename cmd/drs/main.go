package main

import (
	"os"

	"github.com/drsproject/drs/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
