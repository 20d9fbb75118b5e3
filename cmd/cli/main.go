package main

import (
	"os"

	"github.com/jo-hoe/melonripe/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
