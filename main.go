package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ret2basic/erc4626-invariants/cmd"
)

func main() {
	app := cli.NewApp()
	app.Name = "erc4626-invariants"
	app.Usage = "Invariant-verification harness for ERC-4626 vaults"
	app.Description = "Drives randomized operations against a vault through simulated actors and checks a fixed catalog of share-accounting invariants"
	app.Commands = []*cli.Command{
		cmd.RunCommand,
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		fmt.Println("\r\nExiting...")
	}()

	err := app.RunContext(ctx, os.Args)
	if err != nil {
		if errors.Is(err, ctx.Err()) {
			_, _ = fmt.Fprintf(os.Stderr, "command interrupted")
			os.Exit(130)
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v", err)
			os.Exit(1)
		}
	}
}
