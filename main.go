package main

import (
	"context"
	"os"

	"github.com/sadopc/lernzeit/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
