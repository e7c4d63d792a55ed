package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/firewatch-dev/firewatch/cmd"
	"github.com/firewatch-dev/firewatch/internal/buildinfo"
)

// Set through -ldflags "-X main.version=... -X main.buildDate=... -X main.commit=...".
var (
	version   = ""
	buildDate = ""
	commit    = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	info := buildinfo.NewContext(version, buildDate, commit)
	if err := cmd.RootCommand(info).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
