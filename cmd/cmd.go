// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand handles database and configuration setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:  "status",
				Usage: "Show which migrations are applied",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SetupStatus,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// keysCommand lists the keys a sheet can be transposed into.
func keysCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "keys",
		Usage:  "List the twelve keys",
		Action: r.Keys,
	}
}

// transposeCommand transposes free text without touching the database.
func transposeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "transpose",
		Usage:     "Transpose chord text from one key to another",
		ArgsUsage: "[text]",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "text"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "from",
				Usage: "Source key",
			},
			&cli.StringFlag{
				Name:  "to",
				Usage: "Target key",
			},
			&cli.IntFlag{
				Name:    "semitones",
				Aliases: []string{"s"},
				Usage:   "Shift by a number of semitones instead of --from/--to",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Read text from a file (\"-\" for stdin)",
			},
			&cli.BoolFlag{
				Name:  "highlight",
				Usage: "Mark chords in the output with [brackets]",
			},
		},
		Action: r.Transpose,
	}
}

// draftsCommand manages chord sheet drafts.
func draftsCommand(r *Runner) *cli.Command {
	jsonFlag := func() cli.Flag {
		return &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}
	}

	return &cli.Command{
		Name:    "drafts",
		Aliases: []string{"d"},
		Usage:   "Manage chord sheet drafts",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a draft",
				ArgsUsage: "<title>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "title"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key",
						Aliases:  []string{"k"},
						Usage:    "Key the sheet is written in",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read the sheet from a file (\"-\" for stdin)",
					},
					&cli.StringFlag{
						Name:  "content",
						Usage: "Sheet text",
					},
				},
				Action: r.DraftsCreate,
			},
			{
				Name:  "list",
				Usage: "List drafts",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "key",
						Usage: "Only drafts in this key",
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Only drafts whose title contains this text",
					},
					jsonFlag(),
				},
				Action: r.DraftsList,
			},
			{
				Name:      "show",
				Usage:     "Show a draft with its chords and clips",
				ArgsUsage: "<draft>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "draft"},
				},
				Flags: []cli.Flag{
					jsonFlag(),
					&cli.BoolFlag{
						Name:  "highlight",
						Usage: "Mark chords in the sheet with [brackets]",
					},
				},
				Action: r.DraftsShow,
			},
			{
				Name:      "transpose",
				Usage:     "Rewrite a draft into another key",
				ArgsUsage: "<draft> <key>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "draft"},
					&cli.StringArg{Name: "key"},
				},
				Action: r.DraftsTranspose,
			},
			{
				Name:      "export",
				Usage:     "Export drafts with their clips",
				ArgsUsage: "[draft...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "json, csv, markdown or txt",
						Value: "markdown",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default compuse_export_{epoch})",
					},
					&cli.BoolFlag{
						Name:  "audio",
						Usage: "Copy clip audio next to markdown exports",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent export workers",
						Value: 4,
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Export every draft",
					},
				},
				Action: r.DraftsExport,
			},
			{
				Name:      "delete",
				Usage:     "Delete a draft and its clips",
				ArgsUsage: "<draft>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "draft"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "purge",
						Usage: "Also delete the stored clip audio",
					},
				},
				Action: r.DraftsDelete,
			},
			{
				Name:      "history",
				Usage:     "List clip syncs of a draft",
				ArgsUsage: "<draft>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "draft"},
				},
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.DraftsHistory,
			},
		},
	}
}

// clipsCommand manages the recorded clips of a draft.
func clipsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "clips",
		Usage: "Record and manage draft clips",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List the clips of a draft",
				ArgsUsage: "<draft>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "draft"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
					&cli.BoolFlag{Name: "csv", Usage: "Output CSV"},
				},
				Action: r.ClipsList,
			},
			{
				Name:      "record",
				Usage:     "Record a clip from the configured inputs and save it",
				ArgsUsage: "<draft>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "draft"},
				},
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:    "duration",
						Aliases: []string{"d"},
						Usage:   "How long to record",
						Value:   defaultRecordDuration,
					},
					&cli.BoolFlag{
						Name:  "mixed",
						Usage: "Record over the backing track (system input)",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Clip name",
					},
					&cli.StringFlag{
						Name:  "mic",
						Usage: "Microphone input: raw s16le PCM file, or \"-\" for stdin",
					},
					&cli.StringFlag{
						Name:  "system",
						Usage: "Backing track: wav, mp3, flac or raw s16le PCM",
					},
					&cli.FloatFlag{
						Name:  "mic-gain",
						Usage: "Microphone gain (1.0 is unity)",
						Value: -1,
					},
					&cli.FloatFlag{
						Name:  "system-gain",
						Usage: "Backing track gain (1.0 is unity)",
						Value: -1,
					},
				},
				Action: r.ClipsRecord,
			},
			{
				Name:      "play",
				Usage:     "Play a stored clip",
				ArgsUsage: "<draft> <clip>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "draft"},
					&cli.StringArg{Name: "clip"},
				},
				Action: r.ClipsPlay,
			},
			{
				Name:      "rename",
				Usage:     "Rename a stored clip",
				ArgsUsage: "<draft> <clip> <name>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "draft"},
					&cli.StringArg{Name: "clip"},
					&cli.StringArg{Name: "name"},
				},
				Action: r.ClipsRename,
			},
			{
				Name:      "delete",
				Usage:     "Delete a stored clip and its audio",
				ArgsUsage: "<draft> <clip>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "draft"},
					&cli.StringArg{Name: "clip"},
				},
				Action: r.ClipsDelete,
			},
			{
				Name:      "export",
				Usage:     "Write a clip's audio to a file",
				ArgsUsage: "<draft> <clip>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "draft"},
					&cli.StringArg{Name: "clip"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default derived from the clip name)",
					},
				},
				Action: r.ClipsExport,
			},
		},
	}
}

// studioCommand launches the interactive recording studio.
func studioCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "studio",
		Aliases: []string{"tui", "ui"},
		Usage:   "Launch the interactive recording studio",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the studio is open",
				Value: "./tmp/compuse-studio.log",
			},
		},
		Action: r.Studio,
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default from config server.host and server.port)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the key list in a browser once listening",
			},
		},
		Action: r.Serve,
	}
}
