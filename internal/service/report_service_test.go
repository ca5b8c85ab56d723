package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/reportcat/internal/models"
	"github.com/noah-isme/reportcat/internal/report"
	appErrors "github.com/noah-isme/reportcat/pkg/errors"
	"github.com/noah-isme/reportcat/pkg/sqlguard"
)

type stubStore struct {
	rows    [][]interface{}
	err     error
	queries []string
}

func (s *stubStore) Query(_ context.Context, query string, _ ...interface{}) ([][]interface{}, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]interface{}, len(s.rows))
	for i, row := range s.rows {
		out[i] = append([]interface{}(nil), row...)
	}
	return out, nil
}

type memCache struct {
	data map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

type reportObservation struct {
	name    string
	outcome string
	rows    int
}

type metricsRecorder struct {
	reports []reportObservation
	exports []models.ExportStatus
}

func (m *metricsRecorder) ObserveReport(name, outcome string, rows int, _ time.Duration) {
	m.reports = append(m.reports, reportObservation{name: name, outcome: outcome, rows: rows})
}

func (m *metricsRecorder) RecordExportJob(_ models.ExportFormat, status models.ExportStatus) {
	m.exports = append(m.exports, status)
}

func testRegistry(t *testing.T) *report.Registry {
	t.Helper()
	reg, err := report.NewRegistry(
		report.Definition{Name: "daily", Build: func() (*report.Report, error) {
			r := report.New("daily", report.Fragments{From: "events", GroupBy: "day"})
			r.AddParam("since", report.ParamDate, nil)
			r.AddColumn("day", report.ColumnDate, report.ColumnOptions{})
			r.AddColumn("total", report.ColumnInteger, report.ColumnOptions{SQL: "count(1)"})
			return r, nil
		}},
		report.Definition{Name: "stacked", Build: func() (*report.Report, error) {
			r := report.New("stacked", report.Fragments{From: "events", Where: "1 = 1; DROP TABLE events"})
			r.AddColumn("id", report.ColumnInteger, report.ColumnOptions{})
			return r, nil
		}},
	)
	require.NoError(t, err)
	return reg
}

func newReportServiceForTest(t *testing.T, store *stubStore, guard *sqlguard.Guard, cache reportCache, metrics reportMetrics) *ReportService {
	t.Helper()
	svc := NewReportService(testRegistry(t), store, guard, cache, metrics, zap.NewNop(), ReportServiceConfig{QueryTimeout: time.Second})
	svc.now = func() time.Time { return time.Date(2020, 1, 3, 4, 5, 6, 0, time.UTC) }
	return svc
}

func TestReportServiceList(t *testing.T) {
	svc := newReportServiceForTest(t, &stubStore{}, nil, nil, nil)
	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "daily", list[0].Name)
	assert.Equal(t, "stacked", list[1].ID)
}

func TestReportServiceGenerate(t *testing.T) {
	store := &stubStore{rows: [][]interface{}{{"2020-01-01", int64(3)}, {"2020-01-02", int64(5)}}}
	metrics := &metricsRecorder{}
	svc := newReportServiceForTest(t, store, nil, nil, metrics)

	r, err := svc.Generate(context.Background(), "daily", nil)
	require.NoError(t, err)
	assert.Len(t, r.Rows, 2)
	assert.Equal(t, []reportObservation{{name: "daily", outcome: OutcomeSuccess, rows: 2}}, metrics.reports)
}

func TestReportServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		report    string
		overrides map[string]interface{}
		storeErr  error
		guard     bool
		code      string
		status    int
	}{
		{name: "unknown report", report: "missing", code: "NOT_FOUND", status: http.StatusNotFound},
		{name: "bad date", report: "daily", overrides: map[string]interface{}{"since": "soon"}, code: "VALIDATION_ERROR", status: http.StatusBadRequest},
		{name: "store failure", report: "daily", storeErr: errors.New("boom"), code: "QUERY_FAILED", status: http.StatusBadGateway},
		{name: "guard", report: "stacked", guard: true, code: "UNSAFE_SQL", status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var guard *sqlguard.Guard
			if tc.guard {
				guard = sqlguard.New()
			}
			store := &stubStore{err: tc.storeErr}
			svc := newReportServiceForTest(t, store, guard, nil, nil)

			_, err := svc.Generate(context.Background(), tc.report, tc.overrides)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, tc.code, appErr.Code)
			assert.Equal(t, tc.status, appErr.Status)
			if tc.guard {
				assert.Empty(t, store.queries)
			}
		})
	}
}

func TestReportServiceShowUsesCache(t *testing.T) {
	store := &stubStore{rows: [][]interface{}{{"2020-01-01", int64(3)}}}
	cache := &memCache{data: map[string][]byte{}}
	svc := newReportServiceForTest(t, store, nil, cache, nil)
	overrides := map[string]string{"since": "2020-01-01"}

	first, hit, err := svc.Show(context.Background(), "daily", overrides)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, first.Count)

	second, hit, err := svc.Show(context.Background(), "daily", overrides)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.Count, second.Count)
	assert.Equal(t, "2020-01-01", second.Attributes["since"])
	assert.Len(t, store.queries, 1)
}

func TestReportServiceShowKeysCacheOnParamValues(t *testing.T) {
	store := &stubStore{rows: [][]interface{}{{"2020-01-01", int64(3)}}}
	cache := &memCache{data: map[string][]byte{}}
	svc := newReportServiceForTest(t, store, nil, cache, nil)

	_, hit, err := svc.Show(context.Background(), "daily", map[string]string{"since": "2020-01-01", "utm_source": "mail"})
	require.NoError(t, err)
	assert.False(t, hit)

	_, hit, err = svc.Show(context.Background(), "daily", map[string]string{"since": "2020-01-01"})
	require.NoError(t, err)
	assert.True(t, hit)

	_, hit, err = svc.Show(context.Background(), "daily", map[string]string{"since": "2020-01-02"})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, store.queries, 2)
}

func TestReportServiceShowKeysCacheOnDerivedDefaults(t *testing.T) {
	today := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	reg, err := report.NewRegistry(report.Definition{Name: "rolling", Build: func() (*report.Report, error) {
		r := report.New("rolling", report.Fragments{From: "events", GroupBy: "day"})
		if err := r.AddParam("since", report.ParamDate, nil).SetValue(today); err != nil {
			return nil, err
		}
		r.AddColumn("day", report.ColumnDate, report.ColumnOptions{})
		r.AddColumn("total", report.ColumnInteger, report.ColumnOptions{SQL: "count(1)"})
		return r, nil
	}})
	require.NoError(t, err)
	store := &stubStore{rows: [][]interface{}{{"2020-01-01", int64(3)}}}
	svc := NewReportService(reg, store, nil, &memCache{data: map[string][]byte{}}, nil, zap.NewNop(), ReportServiceConfig{})

	_, hit, err := svc.Show(context.Background(), "rolling", nil)
	require.NoError(t, err)
	assert.False(t, hit)

	today = today.AddDate(0, 0, 1)
	_, hit, err = svc.Show(context.Background(), "rolling", nil)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, store.queries, 2)
}

func TestReportServiceRender(t *testing.T) {
	store := &stubStore{rows: [][]interface{}{{"2020-01-01", int64(3)}, {"2020-01-02", int64(5)}}}
	svc := newReportServiceForTest(t, store, nil, nil, nil)

	out, err := svc.Render(context.Background(), "daily", models.ExportFormatCSV, nil)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", out.ContentType)
	assert.Equal(t, "daily_20200103_040506.csv", out.Filename)
	assert.Equal(t, "day,total\n2020-01-01,3\n2020-01-02,5\n", string(out.Data))

	pdf, err := svc.Render(context.Background(), "daily", models.ExportFormatPDF, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf.Data), "%PDF"))

	_, err = svc.Render(context.Background(), "daily", models.ExportFormat("xlsx"), nil)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestReportServiceSQL(t *testing.T) {
	svc := newReportServiceForTest(t, &stubStore{}, nil, nil, nil)

	sql, err := svc.SQL("daily", map[string]string{"since": "2020-01-01"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT day AS day, count(1) AS total FROM events GROUP BY day", sql)
}

func TestReportKeyIsOrderIndependent(t *testing.T) {
	a := ReportKey("daily", map[string]string{"b": "2", "a": "1"})
	b := ReportKey("daily", map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, a, b)
	assert.Equal(t, "report:daily?a=1&b=2", a)
	assert.NotEqual(t, a, ReportKey("weekly", map[string]string{"a": "1", "b": "2"}))
}
