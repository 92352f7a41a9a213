package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

const helpText = `novacalctl manages tasks, working hours and API tokens in the novacal store,
and runs auto-schedule passes without the daemon.`

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "novacalctl"
	app.HelpName = "novacalctl"
	app.Usage = "novacal administration"
	app.UsageText = "novacalctl [--config path] <command> [arguments...]"
	app.Description = helpText
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Value:  "./config.json",
			Usage:  "path to config json or yaml",
			EnvVar: "NOVACAL_CONFIG",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "add-task",
			Aliases:   []string{"a"},
			Usage:     "create a task",
			ArgsUsage: "<title>",
			Flags:     addTaskFlags,
			Action:    addTask,
		},
		{
			Name:   "list",
			Usage:  "list an owner's tasks",
			Flags:  []cli.Flag{ownerFlag},
			Action: list,
		},
		{
			Name:      "set-hours",
			Usage:     "set an owner's working window for one weekday",
			ArgsUsage: "<weekday> <HH:MM> <HH:MM>",
			Flags:     []cli.Flag{ownerFlag},
			Action:    setHours,
		},
		{
			Name:      "schedule",
			Aliases:   []string{"s"},
			Usage:     "run an auto-schedule pass",
			ArgsUsage: "<task id>...",
			Flags:     scheduleFlags,
			Action:    runSchedule,
		},
		{
			Name:   "token",
			Usage:  "issue an API token for an owner",
			Flags:  []cli.Flag{ownerFlag},
			Action: issueToken,
		},
		{
			Name:   "gcal-auth",
			Usage:  "authorize read-only Google Calendar access and store the token",
			Action: gcalAuth,
		},
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "novacalctl:", err)
		os.Exit(1)
	}
}
