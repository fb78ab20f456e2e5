package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/wesleyorama2/fling/internal/cli"
)

// Main is the entry point for the application
// It's exported to make it testable
func Main() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(Main())
}
