package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/packbuild/cmd/packbuild/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug    bool   `help:"Enable debug mode."`
		Config   string `help:"Path to the pipeline configuration file." default:"config/shakapacker.yml" env:"SHAKAPACKER_CONFIG" type:"path"`
		Env      string `help:"Build environment (development, test, production). Defaults to SHAKAPACKER_ENV, RAILS_ENV or NODE_ENV."`
		Version  kong.VersionFlag
		Build    commands.BuildCmd    `cmd:"" help:"Compile assets once and write the manifest"`
		Watch    commands.WatchCmd    `cmd:"" help:"Recompile assets on change"`
		Serve    commands.ServeCmd    `cmd:"" help:"Run the development server"`
		Manifest commands.ManifestCmd `cmd:"" help:"Show entry point assets from the manifest"`
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:   cli.Debug,
		Version: version,
		Config:  cli.Config,
		Env:     cli.Env,
	})
	cmd.FatalIfErrorf(err)
}
