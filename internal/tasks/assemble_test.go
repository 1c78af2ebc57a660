package tasks

import (
	"testing"
	"time"

	"github.com/desertthunder/acctsync/internal/models"
	"github.com/shopspring/decimal"
)

var (
	accountCreated  = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	refundCompleted = time.Date(2024, 2, 20, 8, 0, 0, 0, time.UTC)
	refundCreated   = time.Date(2024, 2, 18, 8, 0, 0, 0, time.UTC)
)

func remoteAccount(status models.AccountStatus, spend int64) models.RemoteAccount {
	acct := nullSpendAccount(status)
	acct.Spend = decimal.NewNullDecimal(decimal.NewFromInt(spend))
	return acct
}

func nullSpendAccount(status models.AccountStatus) models.RemoteAccount {
	return models.RemoteAccount{
		CustomerID: "123-456-7890",
		Email:      "ops@example.com",
		Status:     status,
		Balance:    decimal.NewNullDecimal(decimal.NewFromInt(500)),
	}
}

func TestBuildRow(t *testing.T) {
	id := models.Identity{AccountUID: "A1", ProviderUUID: "M1", TeamName: "T1"}
	provider := models.Record{"mcc_uuid": "M1", "mcc_name": "Main MCC"}
	account := models.Record{"account_uid": "A1", "created": accountCreated}
	refund := models.Record{
		"account_uid":    "A1",
		"refund_value":   12.5,
		"last_spend":     42.0,
		"completed_time": refundCompleted,
		"created":        refundCreated,
	}

	tc := []struct {
		name       string
		account    models.Record
		refund     models.Record
		remote     models.RemoteAccount
		wantDate   *time.Time
		wantSpend  string
		wantRefund string
	}{
		{
			name:      "active account without refund",
			account:   account,
			remote:    remoteAccount(models.StatusActive, 100),
			wantDate:  &accountCreated,
			wantSpend: "100",
		},
		{
			name:       "zero spend falls back to refund last spend",
			account:    account,
			refund:     refund,
			remote:     remoteAccount(models.StatusActive, 0),
			wantDate:   &accountCreated,
			wantSpend:  "42",
			wantRefund: "12.5",
		},
		{
			name:       "non-zero spend ignores last spend",
			refund:     refund,
			remote:     remoteAccount(models.StatusActive, 7),
			wantDate:   &refundCompleted,
			wantSpend:  "7",
			wantRefund: "12.5",
		},
		{
			name:       "terminal status takes refund completion date",
			account:    account,
			refund:     refund,
			remote:     remoteAccount(models.StatusClosed, 3),
			wantDate:   &refundCompleted,
			wantSpend:  "3",
			wantRefund: "12.5",
		},
		{
			name:       "refund without completion uses refund created",
			refund:     models.Record{"account_uid": "A1", "refund_value": "5", "created": refundCreated},
			remote:     remoteAccount(models.StatusForceClosed, 0),
			wantDate:   &refundCreated,
			wantSpend:  "0",
			wantRefund: "5",
		},
		{
			name:      "terminal account without refund has no date",
			account:   account,
			remote:    remoteAccount(models.StatusInactive, 0),
			wantSpend: "0",
		},
		{
			name:      "no local records",
			remote:    remoteAccount(models.StatusActive, 9),
			wantSpend: "9",
		},
		{
			name:       "null spend falls back to refund last spend",
			refund:     refund,
			remote:     nullSpendAccount(models.StatusClosed),
			wantDate:   &refundCompleted,
			wantSpend:  "42",
			wantRefund: "12.5",
		},
		{
			name:     "null spend without refund stays null",
			account:  account,
			remote:   nullSpendAccount(models.StatusActive),
			wantDate: &accountCreated,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			row := BuildRow(id, tt.account, tt.refund, provider, tt.remote)

			switch {
			case tt.wantDate == nil && row.Date != nil:
				t.Errorf("expected no date, got %v", row.Date)
			case tt.wantDate != nil && (row.Date == nil || !row.Date.Equal(*tt.wantDate)):
				t.Errorf("expected date %v, got %v", tt.wantDate, row.Date)
			}

			if tt.wantSpend == "" {
				if row.Spend.Valid {
					t.Errorf("expected null spend, got %s", row.Spend.Decimal)
				}
			} else if !row.Spend.Valid || !row.Spend.Decimal.Equal(decimal.RequireFromString(tt.wantSpend)) {
				t.Errorf("expected spend %s, got %v", tt.wantSpend, row.Spend)
			}

			if tt.wantRefund == "" {
				if row.Refund.Valid {
					t.Errorf("expected null refund, got %s", row.Refund.Decimal)
				}
			} else if !row.Refund.Valid || !row.Refund.Decimal.Equal(decimal.RequireFromString(tt.wantRefund)) {
				t.Errorf("expected refund %s, got %v", tt.wantRefund, row.Refund)
			}

			if row.Provider != "Main MCC" || row.Team != "T1" || row.DisplayID != "123-456-7890" {
				t.Errorf("unexpected projection: %+v", row)
			}
		})
	}

	t.Run("missing customer id", func(t *testing.T) {
		remote := remoteAccount(models.StatusActive, 1)
		remote.CustomerID = ""
		if row := BuildRow(id, nil, nil, provider, remote); row.DisplayID != NoDisplayID {
			t.Errorf("expected %s, got %q", NoDisplayID, row.DisplayID)
		}
	})

	t.Run("refund without last spend", func(t *testing.T) {
		refund := models.Record{"account_uid": "A1", "refund_value": 1.0}
		row := BuildRow(id, nil, refund, provider, remoteAccount(models.StatusActive, 0))
		if !row.Spend.Valid || !row.Spend.Decimal.IsZero() {
			t.Errorf("expected remote zero spend to stand, got %v", row.Spend)
		}
	})
}

func TestAssemble(t *testing.T) {
	day := func(d int) *time.Time {
		ts := time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
		return &ts
	}
	row := func(team, uid string, date *time.Time) models.EnrichedRow {
		return models.EnrichedRow{Identity: models.Identity{AccountUID: uid, TeamName: team}, Team: team, Date: date}
	}

	rows := []models.EnrichedRow{
		row("Beta", "B1", day(2)),
		row("Alpha", "A1", nil),
		row("Alpha", "A2", day(5)),
		row("Alpha", "A3", day(9)),
		row("Alpha", "A4", day(5)),
		row("Alpha", "A5", nil),
	}

	groups := Assemble(rows)
	if len(groups) != 2 {
		t.Fatalf("expected 2 teams, got %d", len(groups))
	}

	var order []string
	for _, r := range groups["Alpha"] {
		order = append(order, r.Identity.AccountUID)
	}
	want := []string{"A3", "A2", "A4", "A1", "A5"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected Alpha order %v, got %v", want, order)
		}
	}

	reports := Reports(groups)
	if reports[0].Team != "Alpha" || reports[1].Team != "Beta" {
		t.Errorf("expected reports in team order, got %s, %s", reports[0].Team, reports[1].Team)
	}
	if len(reports[1].Rows) != 1 {
		t.Errorf("expected 1 Beta row, got %d", len(reports[1].Rows))
	}
}
