package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version    kong.VersionFlag `short:"v" help:"Show version"`
	Server     ServerCmd        `cmd:"" help:"Run the bidroom server"`
	CreateRoom CreateRoomCmd    `cmd:"create-room" help:"Create a room on a running server"`
	Bot        BotCmd           `cmd:"" help:"Run random-betting bots in a room"`
	Play       PlayCmd          `cmd:"" help:"Play in a room from the terminal"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bidroom"),
		kong.Description("Realtime multiplayer bidding game server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
