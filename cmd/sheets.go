package main

import (
	"context"
	"fmt"
	"net"
	"slices"

	"github.com/desertthunder/acctsync/internal/server"
	"github.com/desertthunder/acctsync/internal/services"
	"github.com/desertthunder/acctsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// SheetsAuth runs the installed-app OAuth flow and saves the token to sheets.token_file.
func (r *Runner) SheetsAuth(ctx context.Context, cmd *cli.Command) error {
	config := r.config.Sheets
	if config.TokenFile == "" {
		return fmt.Errorf("%w: sheets.token_file", shared.ErrMissingConfig)
	}

	oauthConfig, err := services.SheetsOAuthConfig(config)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", config.RedirectPort))
	if err != nil {
		return fmt.Errorf("failed to listen on redirect port %d: %w", config.RedirectPort, err)
	}

	open := shared.OpenBrowser
	if cmd.Bool("no-browser") {
		open = nil
	}

	token, err := server.Authorize(ctx, server.AuthorizeOpts{
		Config:   oauthConfig,
		Listener: listener,
		Open:     open,
		Prompt:   r.output,
		Logger:   r.logger,
	})
	if err != nil {
		return err
	}

	if err := services.SaveToken(config.TokenFile, token); err != nil {
		return err
	}

	r.logger.Info("sheets token saved", "path", config.TokenFile)
	return r.writePlain("✓ Authorization successful, token saved to %s\n", config.TokenFile)
}

// SheetsTabs lists the tabs of the configured spreadsheet.
func (r *Runner) SheetsTabs(ctx context.Context, cmd *cli.Command) error {
	dest, err := r.destination(ctx)
	if err != nil {
		return err
	}

	tabs, err := dest.Tabs(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tabs, cmd.Bool("pretty"))
	}

	titles := make([]string, 0, len(tabs))
	for title := range tabs {
		titles = append(titles, title)
	}
	slices.Sort(titles)

	r.writePlainHeader(fmt.Sprintf("%d tabs in %s", len(tabs), r.config.Sheets.SpreadsheetID))
	for _, title := range titles {
		r.writePlain("%-12d %s\n", tabs[title], title)
	}
	return nil
}
