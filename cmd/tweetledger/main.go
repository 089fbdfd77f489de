package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"tweetledger/internal"
	"tweetledger/internal/server"
)

func main() {
	var opts struct {
		ConfigPath string `short:"c" long:"config" default:"config/config.yml" description:"Path to the configuration file"`
		ImportLog  string `long:"import-log" description:"Replay a journal into the store and exit"`
	}
	if _, err := flags.Parse(&opts); err != nil {
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cfg, err := internal.LoadConfig(opts.ConfigPath)
	if err != nil {
		processError(err)
	}

	if opts.ImportLog != "" {
		if err := importLog(cfg, opts.ImportLog); err != nil {
			processError(err)
		}
		return
	}

	if err := server.Run(cfg); err != nil {
		processError(err)
	}
}

func importLog(cfg *internal.Config, path string) error {
	app, err := server.Open(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	n, err := app.Import(context.Background(), path)
	if err != nil {
		return err
	}
	app.Log.Info("journal imported", zap.String("path", path), zap.Int("entries", n))
	return nil
}

func processError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
}
