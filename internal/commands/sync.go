package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/fieldsync/internal/app"
	"github.com/tildaslashalef/fieldsync/internal/loggy"
	syncsvc "github.com/tildaslashalef/fieldsync/internal/sync"
	"github.com/tildaslashalef/fieldsync/internal/utils"
)

// SyncCommand returns the CLI command for syncing data with the server
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:        "sync",
		Usage:       "Sync local data with the field-data server",
		Description: "Upload pending farm types, crops and farmer records, then download server reference data",
		Subcommands: []*cli.Command{
			{
				Name:        "status",
				Usage:       "Show sync history",
				Description: "Display the outcome of recent sync runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of runs to show",
						Value: 10,
					},
				},
				Action: syncStatusAction,
			},
		},
		Action: syncAction,
	}
}

// syncAction runs a manual sync
func syncAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	loggy.Info("Starting manual sync")
	utils.PrintInfo("Syncing with " + application.Remote.BaseURL())

	summary, err := application.Sync.Run(c.Context, syncsvc.TriggerManual)
	if err != nil {
		switch {
		case errors.Is(err, syncsvc.ErrNotConnected):
			utils.PrintError("Server is unreachable, records stay pending until the next sync")
		case errors.Is(err, syncsvc.ErrSyncInProgress):
			utils.PrintWarning("A sync is already running")
		default:
			utils.PrintError(fmt.Sprintf("Sync failed: %s", err))
		}
		return err
	}

	printSummary(summary)
	return nil
}

func printSummary(summary *syncsvc.Summary) {
	utils.PrintHeading("Sync complete")
	utils.PrintKeyValue("Run", summary.RunID)
	utils.PrintKeyValue("Farm types uploaded", strconv.Itoa(summary.FarmTypesUploaded))
	utils.PrintKeyValue("Crops uploaded", strconv.Itoa(summary.CropsUploaded))
	utils.PrintKeyValue("Farmer records uploaded", strconv.Itoa(summary.FarmerRecordsUploaded))
	utils.PrintKeyValue("Reference records downloaded", strconv.Itoa(summary.ReferenceDownloaded))
	utils.PrintKeyValue("Duration", summary.Duration.Round(time.Millisecond).String())

	if len(summary.Errors) > 0 {
		utils.PrintWarning(fmt.Sprintf("%d record(s) failed and remain pending:", len(summary.Errors)))
		for _, itemErr := range summary.Errors {
			utils.PrintError(fmt.Sprintf("  %s %s: %s", itemErr.Kind, itemErr.LocalID, itemErr.Message))
		}
	}
}

// syncStatusAction shows recent sync run history
func syncStatusAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	runs, err := application.Sync.Runs(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		utils.PrintInfo("No sync runs recorded yet")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		outcome := "ok"
		if !run.Success {
			outcome = "failed"
		}
		rows = append(rows, []string{
			run.ID,
			string(run.Trigger),
			outcome,
			strconv.Itoa(run.FarmTypesUploaded + run.CropsUploaded),
			strconv.Itoa(run.FarmerRecordsUploaded),
			strconv.Itoa(run.ReferenceDownloaded),
			strconv.Itoa(run.ErrorCount),
			run.StartedAt.Local().Format(time.DateTime),
		})
	}

	utils.PrintTable(
		[]string{"Run", "Trigger", "Outcome", "Refs Up", "Farmers Up", "Refs Down", "Errors", "Started"},
		rows,
		utils.TableOptions{Title: "Sync history"},
	)
	return nil
}
