// Package main is the entry point for the menuscrape CLI.
package main

import (
	"os"

	"github.com/jmylchreest/menuscrape/cmd/menuscrape/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
