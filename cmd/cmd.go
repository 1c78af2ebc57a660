// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
		},
	}
}

// setupCommand writes the example config and prepares the run-history database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file and run-history database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the example config to the --config path",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the run-history database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// runCommand performs a full reconciliation
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Reconcile the ledger against the status API and sync team tabs",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Build reports without writing to the spreadsheet",
			},
			&cli.BoolFlag{
				Name:  "no-snapshot",
				Usage: "Skip writing the JSON snapshot",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show the interactive run monitor",
			},
		}, jsonFlags()...),
		Action: r.Run,
	}
}

// replayCommand syncs a saved snapshot
func replayCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "Sync a saved snapshot without reading the ledger",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "path",
			},
		},
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show the interactive run monitor",
			},
		}, jsonFlags()...),
		Action: r.Replay,
	}
}

// exportCommand converts a snapshot to CSV or JSON
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export a snapshot (latest by default) as CSV or JSON",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "path",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (csv or json), inferred from --output when empty",
			},
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    "Output file path",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "run",
				Usage: "Export the snapshot written by this run id",
			},
		},
		Action: r.Export,
	}
}

// runsCommand inspects run history
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Inspect run history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status (completed, partial, failed, ...)",
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Filter by mode (full, dry_run, replay)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to return",
						Value: 20,
					},
				}, jsonFlags()...),
				Action: r.RunsList,
			},
			{
				Name:  "show",
				Usage: "Show one run and its dropped identities (latest by default)",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags:  jsonFlags(),
				Action: r.RunsShow,
			},
		},
	}
}

// sheetsCommand handles spreadsheet authorization and inspection
func sheetsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sheets",
		Usage: "Google Sheets operations",
		Commands: []*cli.Command{
			{
				Name:  "auth",
				Usage: "Authorize access to the spreadsheet using OAuth2",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the consent URL instead of opening a browser",
					},
				},
				Action: r.SheetsAuth,
			},
			{
				Name:   "tabs",
				Usage:  "List tabs in the configured spreadsheet",
				Flags:  jsonFlags(),
				Action: r.SheetsTabs,
			},
		},
	}
}

// statusCommand queries the account-status API directly
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Account-status API operations",
		Commands: []*cli.Command{
			{
				Name:  "verify",
				Usage: "Authenticate and print the remote status of one account",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "account_uid",
					},
				},
				Flags:  jsonFlags(),
				Action: r.StatusVerify,
			},
		},
	}
}
