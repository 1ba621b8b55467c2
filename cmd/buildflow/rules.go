package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/buildflow/pkg/config"
	"github.com/dukex/buildflow/pkg/rules"
	"github.com/urfave/cli/v3"
)

// RulesCommand prints the effective rule set, validating the rules configuration.
func RulesCommand() *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "Validate the rules configuration and list the effective rules",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rules-config",
				Usage:   "YAML file overriding the built-in workflow rules",
				Sources: cli.EnvVars("RULES_CONFIG"),
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			configured, err := config.LoadRules(command.String("rules-config"))
			if err != nil {
				return err
			}

			engine := rules.NewEngine(slog.Default(), configured...)

			for _, rule := range engine.Rules() {
				_, err := fmt.Fprintf(command.Root().Writer, "%-20s %-9s %s\n", rule.Name(), rule.Priority(), rule.Type())
				if err != nil {
					return err
				}
			}

			return nil
		},
	}
}
