// Account-status API client
//
// The API issues a bearer token for a bounded session and answers per-account status lookups.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/acctsync/internal/models"
	"github.com/desertthunder/acctsync/internal/shared"
	"github.com/shopspring/decimal"
)

const defaultSessionTimeout = 20 * time.Minute

type authRequest struct {
	AccountID string `json:"account_id"`
	Secret    string `json:"secret"`
	Timeout   int    `json:"timeout"`
}

type authResponse struct {
	Token string `json:"token"`
	State bool   `json:"state"`
}

// StatusAccount is one entry of the accounts array returned by the status endpoint.
type StatusAccount struct {
	CustomerID looseString         `json:"customer_id"`
	Email      string              `json:"email"`
	Balance    decimal.NullDecimal `json:"balance"`
	Spend      decimal.NullDecimal `json:"spend"`
	Status     string              `json:"status"`
}

type statusResponse struct {
	State    bool            `json:"state"`
	Accounts []StatusAccount `json:"accounts"`
}

// looseString accepts either a JSON string or a JSON number.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	*s = looseString(strings.TrimSpace(string(b)))
	return nil
}

// StatusService talks to the account-status API.
//
// Authenticate is called once per run; Verify is safe for concurrent use with the returned session.
type StatusService struct {
	baseURL        string
	accountID      string
	secret         string
	sessionTimeout time.Duration
	httpClient     *http.Client
	now            func() time.Time
}

// NewStatusService creates a client from config. A nil client gets one bounded by config.Timeout.
func NewStatusService(config shared.StatusAPIConfig, client *http.Client) *StatusService {
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	timeout := config.SessionTimeout
	if timeout <= 0 {
		timeout = defaultSessionTimeout
	}

	return &StatusService{
		baseURL:        strings.TrimRight(config.BaseURL, "/"),
		accountID:      config.AccountID,
		secret:         config.Secret,
		sessionTimeout: timeout,
		httpClient:     client,
		now:            time.Now,
	}
}

// Authenticate exchanges the account id and secret for a session token. A falsy state is an auth failure.
func (s *StatusService) Authenticate(ctx context.Context) (*models.Session, error) {
	body, err := json.Marshal(authRequest{
		AccountID: s.accountID,
		Secret:    s.secret,
		Timeout:   int(s.sessionTimeout / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	issued := s.now()

	var result authResponse
	if err := s.do(req, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	if !result.State || result.Token == "" {
		return nil, fmt.Errorf("%w: status api rejected credentials", shared.ErrAuthFailed)
	}

	return &models.Session{Token: result.Token, ExpiresAt: issued.Add(s.sessionTimeout)}, nil
}

// Verify fetches the current status of one account.
//
// Transport errors, non-2xx responses and a falsy state are Failed; a valid response with no accounts is NotFound.
func (s *StatusService) Verify(ctx context.Context, session *models.Session, accountUID string) models.Lookup[models.RemoteAccount] {
	if accountUID == "" {
		return models.Failed[models.RemoteAccount](fmt.Errorf("%w: account uid", shared.ErrMissingArgument))
	}
	if session == nil || session.Token == "" {
		return models.Failed[models.RemoteAccount](shared.ErrNotAuthenticated)
	}
	if session.Expired(s.now()) {
		return models.Failed[models.RemoteAccount](shared.ErrSessionExpired)
	}

	endpoint := s.baseURL + "/accounts?" + url.Values{"uid": {accountUID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Failed[models.RemoteAccount](fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+session.Token)

	var result statusResponse
	if err := s.do(req, &result); err != nil {
		return models.Failed[models.RemoteAccount](err)
	}

	if !result.State {
		return models.Failed[models.RemoteAccount](fmt.Errorf("%w: falsy state for %s", shared.ErrAPIRequest, accountUID))
	}
	if len(result.Accounts) == 0 {
		return models.NotFound[models.RemoteAccount]()
	}

	return models.Found(result.Accounts[0].toRemote())
}

func (a StatusAccount) toRemote() models.RemoteAccount {
	return models.RemoteAccount{
		CustomerID: string(a.CustomerID),
		Email:      a.Email,
		Status:     models.AccountStatus(strings.ToUpper(strings.TrimSpace(a.Status))),
		Balance:    a.Balance,
		Spend:      a.Spend,
	}
}

// do sends req and decodes a JSON body into result.
func (s *StatusService) do(req *http.Request, result any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", shared.ErrAPIRequest, err)
	}
	return nil
}
