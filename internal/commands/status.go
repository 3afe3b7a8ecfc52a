package commands

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/fieldsync/internal/app"
	"github.com/tildaslashalef/fieldsync/internal/utils"
)

// StatusCommand returns the CLI command for checking server reachability
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:        "status",
		Usage:       "Show server reachability",
		Description: "Probes the field-data server and reports connectivity",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Force a fresh probe instead of the cached result",
			},
		},
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	connected := application.Monitor.CurrentStatus(c.Context, c.Bool("refresh"))
	state := application.Monitor.Snapshot()

	utils.PrintKeyValue("Server", application.Remote.BaseURL())
	if connected {
		utils.PrintKeyValueWithColor("Connectivity", "online", utils.Theme.Success)
	} else {
		utils.PrintKeyValueWithColor("Connectivity", "offline", utils.Theme.Error)
	}
	if !state.LastCheckedAt.IsZero() {
		utils.PrintKeyValue("Last checked", state.LastCheckedAt.Local().Format(time.DateTime))
	}

	return nil
}
