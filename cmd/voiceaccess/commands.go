package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/voiceaccess/internal/app"
	"github.com/vovakirdan/voiceaccess/internal/auth"
	"github.com/vovakirdan/voiceaccess/internal/log"
	"github.com/vovakirdan/voiceaccess/internal/registry"
)

func newChannelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List registered channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger := log.NewWithWriter(cmd.ErrOrStderr(), "warn", cfg.LogFormat)
			storage, closeStorage, err := app.OpenStorage(cfg.Registry, logger)
			if err != nil {
				return err
			}
			defer closeStorage()

			reg, err := storage.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load registry: %w", err)
			}
			renderChannels(cmd.OutOrStdout(), reg)
			return nil
		},
	}
}

func renderChannels(w io.Writer, reg *registry.Registry) {
	if reg.Len() == 0 {
		color.New(color.FgYellow).Fprintln(w, "No channels registered.")
		return
	}

	green := color.New(color.FgGreen)
	def := reg.DefaultLabel()

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Label", "Kind", "ID", "Username", "Default"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, e := range reg.Entries() {
		label, mark := e.Label, ""
		if e.Label == def {
			label = green.Sprint(e.Label)
			mark = green.Sprint("yes")
		}
		username := ""
		if e.Username != "" {
			username = "@" + e.Username
		}
		table.Append([]string{label, string(e.Kind), strconv.FormatInt(e.ID, 10), username, mark})
	}
	table.Render()
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for admin.password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}
