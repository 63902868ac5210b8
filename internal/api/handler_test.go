package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// response mirrors the parts of ReconcileResponse the tests look at.
type response struct {
	Success         bool   `json:"success"`
	Error           string `json:"error"`
	DuplicateGroups []struct {
		StatementIDs []string `json:"statement_ids"`
	} `json:"duplicate_groups"`
	Report *struct {
		Order       []string         `json:"order"`
		RemovalPlan map[string][]int `json:"removal_plan"`
	} `json:"report"`
	Removed int         `json:"removed"`
	Ledger  []LedgerRow `json:"ledger"`
}

func do(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out response
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return resp, out
}

const overlapBatch = `{"statements": [
  {"id": "jan", "period_start": "2024-01-01", "period_end": "2024-01-31",
   "start_balance": "600.00", "end_balance": "500.00",
   "transactions": [
     {"date": "2024-01-10", "type": "SO", "description": "RENT", "amount": "-60.00", "balance": "540.00"},
     {"date": "2024-01-26", "type": "POS", "description": "TESCO", "amount": "-15.00", "balance": "525.00"},
     {"date": "2024-01-28", "type": "DD", "description": "GYM", "amount": "-25.00", "balance": "500.00"}]},
  {"id": "feb", "period_start": "2024-01-25", "period_end": "2024-02-24",
   "start_balance": "540.00", "end_balance": "600.00",
   "transactions": [
     {"date": "2024-01-26", "type": "POS", "description": "Tesco", "amount": "-15.00", "balance": "525.00"},
     {"date": "2024-01-28", "type": "DD", "description": "GYM", "amount": "-25.00", "balance": "500.00"},
     {"date": "2024-02-01", "type": "BGC", "description": "SALARY", "amount": "100.00", "balance": "600.00"}]}
]}`

func TestHealthEndpoint(t *testing.T) {
	app := NewApp(nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "ok", result["status"])
	assert.NotEmpty(t, result["version"])
}

func TestReconcile_OverlapResolved(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	app := NewApp(log)

	resp, out := do(t, app, "POST", "/api/reconcile", overlapBatch)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, out.Success)
	require.NotNil(t, out.Report)
	assert.Equal(t, []string{"jan", "feb"}, out.Report.Order)
	assert.Equal(t, map[string][]int{"feb": {1, 0}}, out.Report.RemovalPlan)
	assert.Equal(t, 2, out.Removed)

	require.Len(t, out.Ledger, 4)
	var descs []string
	for _, r := range out.Ledger {
		descs = append(descs, r.Description)
	}
	assert.Equal(t, []string{"RENT", "TESCO", "GYM", "SALARY"}, descs)
	assert.Equal(t, "feb", out.Ledger[3].Statement)
	assert.Equal(t, "2024-02-01", out.Ledger[3].Date)

	assert.Equal(t, "reconcile request served", hook.LastEntry().Message)
}

func TestReconcile_DuplicateStatements(t *testing.T) {
	app := NewApp(nil)
	body := `{"statements": [
	  {"id": "a", "start_balance": 10, "end_balance": 5, "transactions": [{"date": "2024-01-02", "type": "DD", "description": "X", "amount": -5, "balance": 5}]},
	  {"id": "b", "start_balance": 10, "end_balance": 5, "transactions": [{"date": "2024-01-02", "type": "DD", "description": "X", "amount": -5, "balance": 5}]}
	]}`

	resp, out := do(t, app, "POST", "/api/reconcile", body)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.False(t, out.Success)
	require.Len(t, out.DuplicateGroups, 1)
	assert.Equal(t, []string{"a", "b"}, out.DuplicateGroups[0].StatementIDs)
	assert.Contains(t, out.Error, "remove the duplicates and run again")
	assert.Empty(t, out.Ledger)
}

func TestReconcile_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"malformed", `{"statements": [`, "parsing batch"},
		{"empty", `{"statements": []}`, "no statements in request"},
		{"missing id", `{"statements": [{"start_balance": 1}]}`, "id is required"},
		{"repeated id", `{"statements": [{"id": "a"}, {"id": "a"}]}`, `statement id "a" appears more than once`},
	}
	app := NewApp(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := do(t, app, "POST", "/api/reconcile", tt.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, out.Error, tt.wantErr)
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	resp, out := do(t, NewApp(nil), "GET", "/api/nope", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, out.Error)
}

func TestRecoversFromPanic(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	app := NewApp(log)
	app.Get("/boom", func(*fiber.Ctx) error { panic("boom") })

	resp, out := do(t, app, "GET", "/boom", "")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, out.Error, "boom")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "request failed", hook.LastEntry().Message)
}
