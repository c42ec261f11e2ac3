package main

import (
	"context"
	"fmt"
	"os"

	"github.com/GuilhermeSoares009/signal-filter/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "signalfilter:", err)
		os.Exit(1)
	}
}
