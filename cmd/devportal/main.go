// Devportal is a command-line client for a developer portal fronting a REST
// API gateway: browse the catalog, manage subscriptions, and track usage.
package main

import (
	"flag"
	"fmt"
	"os"
)

var version = "dev"

const usageText = `usage: devportal [flags] <command> [args]

commands:
  catalog                 list the API catalog
  apikey                  print the account's API key
  subscriptions           list current subscriptions
  subscribe <plan>        subscribe to a usage plan
  unsubscribe <plan>      unsubscribe from a usage plan
  usage <plan>            print month-to-date usage by day
  watch                   run the usage poller and monitor endpoint

flags:
`

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usageText)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("devportal", version)
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*configPath, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
