// Command dashboard browses the advising dashboard's paged lists from a terminal.
// A shareable dashboard URL restores the exact filters, sort and page it was copied with.
package main

import (
	"log"
	"os"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/fetch"
	logsvc "github.com/trezcool/ushauri/services/logger"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stderr, "DASHBOARD : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	errAndDie(err)

	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug)

	// start CLI
	cli := commandLine{
		conf:   conf,
		logger: appLogger,
		fetcher: fetch.New(fetch.Options{
			BaseURL: conf.API.BaseURL,
			Token:   conf.API.Token,
			Timeout: conf.API.Timeout,
			Logger:  appLogger,
		}),
		in:  os.Stdin,
		out: os.Stdout,
	}
	defer cli.fetcher.Close()

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		cli.fetcher.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
