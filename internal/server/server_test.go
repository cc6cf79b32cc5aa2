package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	billingoverviewservice "github.com/smallbiznis/bukukas/internal/billingoverview/service"
	billingperioddomain "github.com/smallbiznis/bukukas/internal/billingperiod/domain"
	billingperiodrepository "github.com/smallbiznis/bukukas/internal/billingperiod/repository"
	billingperiodservice "github.com/smallbiznis/bukukas/internal/billingperiod/service"
	"github.com/smallbiznis/bukukas/internal/clock"
	"github.com/smallbiznis/bukukas/internal/config"
	"github.com/smallbiznis/bukukas/internal/observability"
	obsmetrics "github.com/smallbiznis/bukukas/internal/observability/metrics"
	subscriberdomain "github.com/smallbiznis/bukukas/internal/subscriber/domain"
	subscriberrepository "github.com/smallbiznis/bukukas/internal/subscriber/repository"
	subscriberservice "github.com/smallbiznis/bukukas/internal/subscriber/service"
	"github.com/smallbiznis/bukukas/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&billingperioddomain.BillingPeriod{},
		&billingperioddomain.BillingEntry{},
		&billingperioddomain.PeriodAggregate{},
		&subscriberdomain.Subscriber{},
	))

	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	subs := subscriberrepository.Provide(conn)

	billing := config.DefaultBillingConfig()
	billing.ActiveFiscalYear = 2026
	periods := billingperiodservice.New(billingperiodservice.Params{
		Repo:        billingperiodrepository.Provide(conn, node),
		Subscribers: subs,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Billing:     config.NewStaticBillingConfigHolder(billing),
	})

	registry := obsmetrics.NewRegistry(obsmetrics.Config{ServiceName: "bukukas-test"})
	engine := NewEngine(observability.Config{Environment: "test"}, obsmetrics.NewHTTPMetrics(registry), registry)

	srv := NewServer(Params{
		Engine:  engine,
		Cfg:     config.Config{Environment: "test"},
		Log:     log,
		Periods: periods,
		Subscribers: subscriberservice.New(subscriberservice.Params{
			Repo:      subs,
			Schedules: periods,
			Log:       log,
			GenID:     node,
			Clock:     clk,
		}),
		Overview: billingoverviewservice.NewService(billingoverviewservice.Params{
			Periods: periods,
			Log:     log,
			Clock:   clk,
		}),
	})
	srv.RegisterRoutes()
	return engine
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", "finance")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *errorPayload   `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

type periodView struct {
	Period    string `json:"period"`
	UpdatedBy string `json:"updated_by"`
	Entries   []struct {
		ID          string `json:"id"`
		PeriodStart string `json:"period_start"`
		NetAmount   string `json:"net_amount"`
		Status      string `json:"status"`
	} `json:"entries"`
}

func createTokoA(t *testing.T, r http.Handler) {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/schedules", map[string]any{
		"subscriber_name":     "Toko A",
		"program_name":        "VPS Basic",
		"monthly_price":       100000,
		"start_date":          "2025-01-15",
		"initial_term_months": 3,
		"first_discount":      50000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp billingperioddomain.CreateScheduleResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &resp))
	require.Equal(t, 9, resp.EntryCount)
}

func getPeriod(t *testing.T, r http.Handler, period string) periodView {
	t.Helper()
	w := doJSON(t, r, http.MethodGet, "/api/billing-periods/"+period, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view periodView
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	return view
}

func TestCreateScheduleAndReadAggregate(t *testing.T) {
	r := newTestServer(t)
	createTokoA(t, r)

	jan := getPeriod(t, r, "2025-01")
	require.Len(t, jan.Entries, 1)
	assert.Equal(t, "250000", jan.Entries[0].NetAmount)
	assert.Equal(t, "finance", jan.UpdatedBy)

	w := doJSON(t, r, http.MethodGet, "/api/billing-periods/2025-01/aggregate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var agg struct {
		Estimated  string `json:"estimated"`
		Realized   string `json:"realized"`
		Open       string `json:"open"`
		EntryCount int    `json:"entry_count"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &agg))
	assert.Equal(t, "250000", agg.Estimated)
	assert.Equal(t, "0", agg.Realized)
	assert.Equal(t, "250000", agg.Open)
	assert.Equal(t, 1, agg.EntryCount)
}

func TestCreateScheduleValidation(t *testing.T) {
	r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/schedules", map[string]any{
		"subscriber_name":     "Toko A",
		"monthly_price":       100000,
		"initial_term_months": 1,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Type)
	require.Len(t, env.Error.Errors, 1)
	assert.Equal(t, "invalid_start_date", env.Error.Errors[0].Code)
	assert.Equal(t, "start_date", env.Error.Errors[0].Field)

	w = doJSON(t, r, http.MethodPost, "/api/schedules", map[string]any{
		"start_date":          "2025-01-15",
		"initial_term_months": 1,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_subscriber", decode(t, w).Error.Errors[0].Code)

	w = doJSON(t, r, http.MethodPost, "/api/schedules", map[string]any{
		"subscriber_id":       "123456",
		"start_date":          "2025-01-15",
		"initial_term_months": 1,
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w).Error.Type)
}

func TestPeriodLookupErrors(t *testing.T) {
	r := newTestServer(t)

	w := doJSON(t, r, http.MethodGet, "/api/billing-periods/2025-1", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_period", decode(t, w).Error.Errors[0].Code)

	w = doJSON(t, r, http.MethodGet, "/api/billing-periods/2030-01", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "billing period not found", decode(t, w).Error.Message)

	w = doJSON(t, r, http.MethodGet, "/api/billing-periods/2030-01/aggregate", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestResponseEnvelopeShape(t *testing.T) {
	r := newTestServer(t)
	createTokoA(t, r)

	var body map[string]json.RawMessage
	w := doJSON(t, r, http.MethodGet, "/api/billing-periods/2025-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "data")
	assert.NotContains(t, body, "error")
	assert.NotContains(t, body, "success")

	body = nil
	w = doJSON(t, r, http.MethodGet, "/api/billing-periods/2030-01", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotContains(t, body, "data")
	assert.NotContains(t, body, "success")

	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body["error"], &payload))
	assert.JSONEq(t, `"not_found"`, string(payload["type"]))
	assert.JSONEq(t, `"billing period not found"`, string(payload["message"]))
}

func TestSetStatusUpdatesAggregate(t *testing.T) {
	r := newTestServer(t)
	createTokoA(t, r)
	entryID := getPeriod(t, r, "2025-04").Entries[0].ID

	w := doJSON(t, r, http.MethodPatch, "/api/billing-periods/2025-04/entries/"+entryID+"/status", map[string]any{"status": "PAID"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_status", decode(t, w).Error.Errors[0].Code)

	w = doJSON(t, r, http.MethodPatch, "/api/billing-periods/2025-04/entries/"+entryID+"/status", map[string]any{
		"status":    "DONE",
		"paid_date": "2025-04-20",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var entry struct {
		Status   string `json:"status"`
		PaidDate string `json:"paid_date"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &entry))
	assert.Equal(t, "DONE", entry.Status)
	assert.True(t, strings.HasPrefix(entry.PaidDate, "2025-04-20"))

	w = doJSON(t, r, http.MethodGet, "/api/aggregates?from=2025-04&to=2025-05", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var aggs []struct {
		Period   string `json:"period"`
		Realized string `json:"realized"`
		Open     string `json:"open"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &aggs))
	require.Len(t, aggs, 2)
	assert.Equal(t, "100000", aggs[0].Realized)
	assert.Equal(t, "0", aggs[0].Open)
	assert.Equal(t, "0", aggs[1].Realized)
}

func TestUpdateEntryRejectsCrossPeriodStart(t *testing.T) {
	r := newTestServer(t)
	createTokoA(t, r)
	before := getPeriod(t, r, "2025-04")

	w := doJSON(t, r, http.MethodPatch, "/api/billing-periods/2025-04/entries/"+before.Entries[0].ID, map[string]any{
		"start_date": "2025-05-01",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	assert.Equal(t, "start_date_outside_period", env.Error.Errors[0].Code)
	assert.Equal(t, "start_date", env.Error.Errors[0].Field)

	after := getPeriod(t, r, "2025-04")
	assert.Equal(t, before.Entries, after.Entries)
	assert.Len(t, getPeriod(t, r, "2025-05").Entries, 1)
}

func TestUpdateEntryRechainsRemainder(t *testing.T) {
	r := newTestServer(t)
	createTokoA(t, r)
	entryID := getPeriod(t, r, "2025-04").Entries[0].ID

	w := doJSON(t, r, http.MethodPatch, "/api/billing-periods/2025-04/entries/"+entryID, map[string]any{
		"term_months": 2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp billingperioddomain.UpdateEntryResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &resp))
	assert.Equal(t, []string{"2025-04", "2025-05", "2025-06", "2025-07", "2025-08", "2025-09", "2025-10", "2025-11"}, resp.Periods)

	assert.Empty(t, getPeriod(t, r, "2025-05").Entries)
	jun := getPeriod(t, r, "2025-06")
	require.Len(t, jun.Entries, 1)
	assert.Equal(t, "600000", jun.Entries[0].NetAmount)
}

func TestDeleteEntryKeepsPeriodDocument(t *testing.T) {
	r := newTestServer(t)
	createTokoA(t, r)
	entryID := getPeriod(t, r, "2025-05").Entries[0].ID

	w := doJSON(t, r, http.MethodDelete, "/api/billing-periods/2025-05/entries/"+entryID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Empty(t, getPeriod(t, r, "2025-05").Entries)

	w = doJSON(t, r, http.MethodDelete, "/api/billing-periods/2025-05/entries/"+entryID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "billing entry not found", decode(t, w).Error.Message)
}

func TestExportBillingPeriod(t *testing.T) {
	r := newTestServer(t)
	createTokoA(t, r)

	w := doJSON(t, r, http.MethodGet, "/api/billing-periods/2025-01/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "billing-2025-01.csv")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Toko A")
	assert.Contains(t, lines[1], "250000.00")
}

func TestSubscriberImportAndRollover(t *testing.T) {
	r := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "subscribers.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("name,program,monthly_price,start_date,initial_term_months,first_discount\n" +
		"Toko A,VPS Basic,100000,2025-01-15,3,50000\n" +
		",VPS Basic,100000,2025-01-15,1,0\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/subscribers/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result subscriberdomain.ImportResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 9, result.Entries)
	assert.Len(t, result.Errors, 1)

	w = doJSON(t, r, http.MethodPost, "/api/fiscal-years/regenerate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var regen billingperioddomain.RegenerateResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &regen))
	assert.Equal(t, 2026, regen.FiscalYear)
	assert.Equal(t, 1, regen.Subscribers)
	assert.Equal(t, 12, regen.Entries)

	w = doJSON(t, r, http.MethodPost, "/api/fiscal-years/regenerate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &regen))
	assert.Equal(t, 0, regen.Subscribers)
	assert.Equal(t, 0, regen.Entries)

	w = doJSON(t, r, http.MethodGet, "/api/fiscal-years/2026/overview?compare=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var overview struct {
		FiscalYear int `json:"fiscal_year"`
		Totals     struct {
			Estimated  string `json:"estimated"`
			EntryCount int    `json:"entry_count"`
		} `json:"totals"`
		Previous *struct {
			EntryCount int `json:"entry_count"`
		} `json:"previous"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &overview))
	assert.Equal(t, 2026, overview.FiscalYear)
	assert.Equal(t, 12, overview.Totals.EntryCount)
	assert.Equal(t, "1200000", overview.Totals.Estimated)
	require.NotNil(t, overview.Previous)
	assert.Equal(t, 9, overview.Previous.EntryCount)

	w = doJSON(t, r, http.MethodGet, "/api/fiscal-years/abc/overview", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscriberLifecycle(t *testing.T) {
	r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/subscribers", map[string]any{
		"name":                "Toko C",
		"program":             "VPS Pro",
		"monthly_price":       "200000",
		"start_date":          "2025-10-01",
		"initial_term_months": 1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created struct {
		Subscriber struct {
			ID string `json:"id"`
		} `json:"subscriber"`
		EntryCount int `json:"entry_count"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	assert.Equal(t, 2, created.EntryCount)

	w = doJSON(t, r, http.MethodGet, "/api/subscribers?status=active", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/subscribers?status=paused", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/subscribers/"+created.Subscriber.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, getPeriod(t, r, "2025-10").Entries)

	w = doJSON(t, r, http.MethodGet, "/api/subscribers/"+created.Subscriber.ID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/subscribers/not-a-number", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestServer(t)

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bukukas_http_requests_total")
}
