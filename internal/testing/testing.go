// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/acctsync/internal/models"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// FakeClock is a manually advanced clock. Sleep advances it instead of blocking.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleeps returns every duration passed to Sleep
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// StaticSource is a record source returning fixed records or a fixed error
type StaticSource struct {
	SourceName string
	SourceKind models.RecordKind
	Rows       []models.Record
	Err        error
}

func (s *StaticSource) Name() string            { return s.SourceName }
func (s *StaticSource) Kind() models.RecordKind { return s.SourceKind }

func (s *StaticSource) Records(ctx context.Context) ([]models.Record, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Rows, nil
}

// FakeLedger serves account, refund and provider lookups from maps and counts calls.
type FakeLedger struct {
	mu        sync.Mutex
	Accounts  map[string]models.Record
	Refunds   map[string]models.Record
	Providers map[string]models.Record
	// Fail forces a Failed lookup for any key listed
	Fail  map[string]error
	Calls map[string]int
}

func NewFakeLedger() *FakeLedger {
	return &FakeLedger{
		Accounts:  map[string]models.Record{},
		Refunds:   map[string]models.Record{},
		Providers: map[string]models.Record{},
		Fail:      map[string]error{},
		Calls:     map[string]int{},
	}
}

func (f *FakeLedger) lookup(kind string, m map[string]models.Record, key string) models.Lookup[models.Record] {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls[kind+":"+key]++
	if err, ok := f.Fail[key]; ok {
		return models.Failed[models.Record](err)
	}
	if rec, ok := m[key]; ok {
		return models.Found(rec)
	}
	return models.NotFound[models.Record]()
}

func (f *FakeLedger) AccountByUID(ctx context.Context, uid string) models.Lookup[models.Record] {
	return f.lookup("account", f.Accounts, uid)
}

func (f *FakeLedger) RefundByUID(ctx context.Context, uid string) models.Lookup[models.Record] {
	return f.lookup("refund", f.Refunds, uid)
}

func (f *FakeLedger) ProviderByUUID(ctx context.Context, uuid string) models.Lookup[models.Record] {
	return f.lookup("provider", f.Providers, uuid)
}

// CallCount returns how many times kind ("account", "refund", "provider") was looked up for key
func (f *FakeLedger) CallCount(kind, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[kind+":"+key]
}

// FakeStatusAPI is an in-memory account-status client.
type FakeStatusAPI struct {
	mu       sync.Mutex
	Accounts map[string]models.RemoteAccount
	Fail     map[string]error
	AuthErr  error
	Verified []string
}

func NewFakeStatusAPI() *FakeStatusAPI {
	return &FakeStatusAPI{Accounts: map[string]models.RemoteAccount{}, Fail: map[string]error{}}
}

func (f *FakeStatusAPI) Authenticate(ctx context.Context) (*models.Session, error) {
	if f.AuthErr != nil {
		return nil, f.AuthErr
	}
	return &models.Session{Token: "test-token"}, nil
}

func (f *FakeStatusAPI) Verify(ctx context.Context, session *models.Session, uid string) models.Lookup[models.RemoteAccount] {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Verified = append(f.Verified, uid)
	if err, ok := f.Fail[uid]; ok {
		return models.Failed[models.RemoteAccount](err)
	}
	if acct, ok := f.Accounts[uid]; ok {
		return models.Found(acct)
	}
	return models.NotFound[models.RemoteAccount]()
}

// LedgerSchema creates the ledger tables read by the record sources
const LedgerSchema = `
CREATE TABLE sub_transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sub_account_uid TEXT,
	mcc_uuid TEXT,
	team_name TEXT,
	amount REAL,
	created TIMESTAMP
);
CREATE TABLE refunded_accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_uid TEXT,
	mcc_uuid TEXT,
	team_name TEXT,
	refund_value REAL,
	last_spend REAL,
	completed_time TIMESTAMP,
	created TIMESTAMP
);
CREATE TABLE sub_accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_uid TEXT,
	mcc_uuid TEXT,
	team_name TEXT,
	created TIMESTAMP
);
CREATE TABLE mcc (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	mcc_uuid TEXT,
	mcc_name TEXT
);
`

// MustExec runs each statement, failing the test on error
func MustExec(t *testing.T, db *sql.DB, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to exec %q: %v", stmt, err)
		}
	}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
