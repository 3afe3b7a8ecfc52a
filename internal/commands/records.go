// Package commands defines the CLI commands exposed by the fieldsync binary.
package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/fieldsync/internal/app"
	"github.com/tildaslashalef/fieldsync/internal/store"
	"github.com/tildaslashalef/fieldsync/internal/utils"
)

var (
	pendingColor = color.New(color.FgYellow)
	syncedColor  = color.New(color.FgGreen)
)

// formatSyncState renders a sync state with color for table output
func formatSyncState(state store.SyncState) string {
	if state == store.SyncStateSynced {
		return syncedColor.Sprint(string(state))
	}
	return pendingColor.Sprint(string(state))
}

// formatCanonicalID renders an optional server-assigned id
func formatCanonicalID(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}

// FarmTypeCommand returns the CLI command for managing farm types
func FarmTypeCommand() *cli.Command {
	return referenceCommand("farmtype", "farm type", store.KindFarmType)
}

// CropCommand returns the CLI command for managing crops
func CropCommand() *cli.Command {
	return referenceCommand("crop", "crop", store.KindCrop)
}

// referenceCommand builds the add/list command tree shared by both
// reference record kinds
func referenceCommand(name, label string, kind store.ReferenceKind) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: fmt.Sprintf("Manage %s records", label),
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: fmt.Sprintf("Record a new %s locally", label),
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    fmt.Sprintf("Name of the %s", label),
						Required: true,
					},
					&cli.StringFlag{
						Name:    "description",
						Aliases: []string{"d"},
						Usage:   "Optional description",
					},
				},
				Action: func(c *cli.Context) error {
					application, err := app.FromContext(c)
					if err != nil {
						return err
					}

					record, err := application.Store.CreateReferenceRecord(
						c.Context, kind, c.String("name"), c.String("description"))
					if err != nil {
						return err
					}

					utils.PrintSuccess(fmt.Sprintf("Recorded %s %q (%s)", label, record.Name, record.LocalID))
					utils.PrintInfo("The record is pending and will upload on the next sync")
					return nil
				},
			},
			{
				Name:  "list",
				Usage: fmt.Sprintf("List all %s records", label),
				Action: func(c *cli.Context) error {
					application, err := app.FromContext(c)
					if err != nil {
						return err
					}

					records, err := application.Store.ListReferenceRecords(c.Context, kind)
					if err != nil {
						return err
					}

					if len(records) == 0 {
						utils.PrintInfo(fmt.Sprintf("No %s records found", label))
						return nil
					}

					rows := make([][]string, 0, len(records))
					for _, record := range records {
						rows = append(rows, []string{
							record.LocalID,
							record.Name,
							record.Description,
							formatCanonicalID(record.CanonicalID),
							formatSyncState(record.SyncState),
							record.CreatedAt.Local().Format(time.DateTime),
						})
					}

					utils.PrintTable(
						[]string{"Local ID", "Name", "Description", "Server ID", "State", "Created"},
						rows,
						utils.TableOptions{Title: fmt.Sprintf("%s records", label)},
					)
					return nil
				},
			},
		},
	}
}

// FarmerCommand returns the CLI command for managing farmer records
func FarmerCommand() *cli.Command {
	return &cli.Command{
		Name:  "farmer",
		Usage: "Manage farmer records",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Record a new farmer entry locally",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Farmer's full name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "national-id",
						Usage:    "Farmer's national identification number",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "farm-type",
						Usage:    "Local id of the farm type",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "crop",
						Usage:    "Local id of the crop",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "location",
						Usage: "Optional location description",
					},
				},
				Action: addFarmerAction,
			},
			{
				Name:   "list",
				Usage:  "List all farmer records",
				Action: listFarmersAction,
			},
		},
	}
}

func addFarmerAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	ctx := c.Context

	// Fail fast on a dangling reference instead of at upload time
	if _, err := application.Store.GetReferenceRecord(ctx, store.KindFarmType, c.String("farm-type")); err != nil {
		return fmt.Errorf("farm type %s: %w", c.String("farm-type"), err)
	}
	if _, err := application.Store.GetReferenceRecord(ctx, store.KindCrop, c.String("crop")); err != nil {
		return fmt.Errorf("crop %s: %w", c.String("crop"), err)
	}

	record, err := application.Store.CreateFarmerRecord(ctx, store.FarmerRecordInput{
		FarmerName:      c.String("name"),
		NationalID:      c.String("national-id"),
		FarmTypeLocalID: c.String("farm-type"),
		CropLocalID:     c.String("crop"),
		Location:        c.String("location"),
	})
	if err != nil {
		return err
	}

	utils.PrintSuccess(fmt.Sprintf("Recorded farmer %q (%s)", record.FarmerName, record.LocalID))
	utils.PrintInfo("The record is pending and will upload on the next sync")
	return nil
}

func listFarmersAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	records, err := application.Store.ListFarmerRecords(c.Context)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		utils.PrintInfo("No farmer records found")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			record.LocalID,
			record.FarmerName,
			record.NationalID,
			record.FarmTypeName,
			record.CropName,
			record.Location,
			formatCanonicalID(record.CanonicalID),
			formatSyncState(record.SyncState),
		})
	}

	utils.PrintTable(
		[]string{"Local ID", "Farmer", "National ID", "Farm Type", "Crop", "Location", "Server ID", "State"},
		rows,
		utils.TableOptions{Title: "Farmer records"},
	)
	return nil
}
