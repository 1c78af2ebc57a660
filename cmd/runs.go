package main

import (
	"context"
	"time"

	"github.com/desertthunder/acctsync/internal/models"
	"github.com/urfave/cli/v3"
)

// RunsList prints recent runs, newest first.
func (r *Runner) RunsList(ctx context.Context, cmd *cli.Command) error {
	defer r.Close()

	repo, err := r.runRepository()
	if err != nil {
		return err
	}

	runs, err := repo.List(map[string]any{
		"status": cmd.String("status"),
		"mode":   cmd.String("mode"),
		"limit":  int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		summaries := make([]runSummary, len(runs))
		for i, run := range runs {
			summaries[i] = summarize(run, nil, nil)
		}
		return r.writeJSON(summaries, cmd.Bool("pretty"))
	}

	if len(runs) == 0 {
		return r.writePlain("No runs recorded\n")
	}

	r.writePlainHeader("Run History")
	for _, run := range runs {
		r.writePlain("#%-4d %s  %-9s %-8s rows=%d dropped=%d teams=%d/%d  %s\n",
			run.Sequence(), run.StartedAt.Local().Format(time.DateTime), run.Status, run.Mode,
			run.RowsEnriched, run.RowsDropped, run.TeamsSynced, run.TeamsSynced+run.TeamsFailed, run.ID())
	}
	return nil
}

// RunsShow prints one run with its dropped identities. Without an id it shows the latest run.
func (r *Runner) RunsShow(ctx context.Context, cmd *cli.Command) error {
	defer r.Close()

	repo, err := r.runRepository()
	if err != nil {
		return err
	}

	var run *models.Run
	if id := cmd.StringArg("id"); id != "" {
		run, err = repo.Get(id)
	} else {
		run, err = repo.Latest()
	}
	if err != nil {
		return err
	}

	drops, err := repo.Drops(run.ID())
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(summarize(run, drops, nil), cmd.Bool("pretty"))
	}

	r.writePlainHeader("Run " + run.ID())
	r.writePlain("Sequence: %d\n", run.Sequence())
	r.writePlain("Mode: %s\n", run.Mode)
	r.writePlain("Status: %s\n", run.Status)
	r.writePlain("Started: %s\n", run.StartedAt.Local().Format(time.DateTime))
	r.writePlain("Duration: %s\n", run.Duration().Round(time.Millisecond))
	r.writePlain("Identities: %d\n", run.Identities)
	r.writePlain("Rows: %d enriched, %d dropped\n", run.RowsEnriched, run.RowsDropped)
	r.writePlain("Teams: %d synced, %d failed\n", run.TeamsSynced, run.TeamsFailed)
	if run.SnapshotPath != "" {
		r.writePlain("Snapshot: %s\n", run.SnapshotPath)
	}
	if run.ErrorMessage != "" {
		r.writePlain("Error: %s\n", run.ErrorMessage)
	}

	if len(drops) > 0 {
		r.writePlain("\nDropped identities:\n")
		for _, d := range drops {
			r.writePlain("  - %s [%s] %s\n", d.Identity, d.Stage, d.Reason)
		}
	}
	return nil
}
