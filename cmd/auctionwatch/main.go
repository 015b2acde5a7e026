package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ReaperOAK/player-auction/internal/watch"
)

func main() {
	url := flag.String("url", "ws://localhost:5000/ws?role=spectator", "auction channel websocket URL")
	token := flag.String("token", os.Getenv("AUCTION_TOKEN"), "bearer token for admin or team channels")
	team := flag.String("team", "", "team id whose addressed events are highlighted")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	feed := watch.NewFeed(*url, *token)
	go feed.Run(ctx)

	p := tea.NewProgram(watch.NewModel(feed.Msgs(), *team), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, "auctionwatch:", err)
		os.Exit(1)
	}
}
