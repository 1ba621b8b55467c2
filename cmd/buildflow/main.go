package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	cmd := &cli.Command{
		Name:                  "buildflow",
		Usage:                 "Run construction project workflows",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			RunCommand(),
			RulesCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
