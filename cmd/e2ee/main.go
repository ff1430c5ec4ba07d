package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NitinDabar/e2ee-chat/cmd/e2ee/commands"
	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx)
	stop()
	if err == nil {
		return
	}
	if domain.IsProtocolError(err) {
		fmt.Fprintf(os.Stderr, "protocol error: %v\n", err)
		os.Exit(2)
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
