package main

import (
	"github.com/alecthomas/kong"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/cli"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/config"
)

func main() {
	var c cli.CLI
	ctx := kong.Parse(&c,
		kong.Name(config.AppName),
		kong.Description("Nordic Secure DFU over Bluetooth LE"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Configuration(kong.JSON, config.Path()),
	)
	err := ctx.Run(&c)
	ctx.FatalIfErrorf(err)
}
