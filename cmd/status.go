package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/acctsync/internal/models"
	"github.com/desertthunder/acctsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// accountView is the JSON shape of one remote status record.
type accountView struct {
	AccountUID string  `json:"account_uid"`
	CustomerID string  `json:"customer_id"`
	Email      string  `json:"email"`
	Status     string  `json:"status"`
	Terminal   bool    `json:"terminal"`
	Balance    *string `json:"balance"`
	Spend      *string `json:"spend"`
}

// StatusVerify authenticates against the status API and prints one account's current state.
func (r *Runner) StatusVerify(ctx context.Context, cmd *cli.Command) error {
	uid := cmd.StringArg("account_uid")
	if uid == "" {
		return fmt.Errorf("%w: account_uid", shared.ErrMissingArgument)
	}

	client, err := r.statusClient()
	if err != nil {
		return err
	}

	session, err := client.Authenticate(ctx)
	if err != nil {
		return err
	}

	lookup := client.Verify(ctx, session, uid)
	switch lookup.Status {
	case models.LookupFailed:
		return fmt.Errorf("%w: %s: %w", shared.ErrAPIRequest, uid, lookup.Err)
	case models.LookupNotFound:
		return fmt.Errorf("%w: account %s", shared.ErrRecordNotFound, uid)
	}

	acct := lookup.Value
	view := accountView{
		AccountUID: uid,
		CustomerID: acct.CustomerID,
		Email:      acct.Email,
		Status:     string(acct.Status),
		Terminal:   acct.Status.IsTerminal(),
	}
	if acct.Balance.Valid {
		balance := acct.Balance.Decimal.String()
		view.Balance = &balance
	}
	if acct.Spend.Valid {
		spend := acct.Spend.Decimal.String()
		view.Spend = &spend
	}

	if cmd.Bool("json") {
		return r.writeJSON(view, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Account " + uid)
	r.writePlain("Customer ID: %s\n", view.CustomerID)
	r.writePlain("Email: %s\n", view.Email)
	r.writePlain("Status: %s\n", view.Status)
	if view.Balance != nil {
		r.writePlain("Balance: %s\n", *view.Balance)
	} else {
		r.writePlain("Balance: -\n")
	}
	if view.Spend != nil {
		r.writePlain("Spend: %s\n", *view.Spend)
	} else {
		r.writePlain("Spend: -\n")
	}
	if view.Terminal {
		r.writePlain("\n⚠ account is no longer active\n")
	}
	return nil
}
