package main

import (
	"fmt"
	"os"

	"github.com/mwantia/ephysdb/cmd/ephysdb/cli"
	"github.com/mwantia/ephysdb/cmd/ephysdb/cli/commands"
)

var (
	version = "0.0.1-dev"
	commit  = "main"
)

func main() {
	info := cli.VersionInfo{
		Version: version,
		Commit:  commit,
	}
	root := cli.NewRootCommand(info)

	root.AddCommand(cli.NewVersionCommand(info))

	root.AddCommand(commands.NewIngestCommand())
	root.AddCommand(commands.NewMigrateCommand())
	root.AddCommand(commands.NewQueryCommand())
	root.AddCommand(commands.NewConfigCommand())

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
