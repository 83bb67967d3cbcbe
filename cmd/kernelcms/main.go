package main

import (
	"os"

	"github.com/ButBow/kernel-gmbh-sub000/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
