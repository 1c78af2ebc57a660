package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/acctsync/internal/models"
)

var (
	_ list.Item = dropItem{}
	_ list.Item = teamItem{}
)

// dropItem wraps [models.Drop] to implement [list.Item].
type dropItem struct {
	drop models.Drop
}

func (i dropItem) FilterValue() string { return i.drop.Identity.String() }
func (i dropItem) Title() string {
	return fmt.Sprintf("%s (%s)", i.drop.Identity.AccountUID, i.drop.Identity.TeamName)
}
func (i dropItem) Description() string {
	return fmt.Sprintf("%s • %s", i.drop.Stage, i.drop.Reason)
}

// teamItem wraps [models.TeamReport] to implement [list.Item].
type teamItem struct {
	report models.TeamReport
	err    error
}

func (i teamItem) FilterValue() string { return i.report.Team }
func (i teamItem) Title() string       { return i.report.Team }
func (i teamItem) Description() string {
	flagged := 0
	for _, row := range i.report.Rows {
		if row.Flagged() {
			flagged++
		}
	}
	desc := fmt.Sprintf("%d rows • %d flagged", len(i.report.Rows), flagged)
	if i.err != nil {
		desc = fmt.Sprintf("%s • sync failed: %v", desc, i.err)
	}
	return desc
}
