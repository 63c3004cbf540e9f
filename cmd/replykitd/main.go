package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/replykit/internal/config"
	"github.com/matheus3301/replykit/internal/daemon"
	"github.com/matheus3301/replykit/internal/paths"
	"go.uber.org/fx"
)

func main() {
	configFlag := flag.String("config", paths.ConfigPath(), "path to config.toml")
	writeConfig := flag.Bool("write-config", false, "write a default config to -config and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.Save(*configFlag, config.Default()); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(*configFlag)
		return
	}

	cfg, err := config.Resolve(*configFlag, os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := paths.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{Config: cfg}),
	)

	app.Run()
}
