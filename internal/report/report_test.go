package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	rows  [][]interface{}
	err   error
	query string
	args  []interface{}
	calls int
}

func (s *stubStore) Query(_ context.Context, query string, args ...interface{}) ([][]interface{}, error) {
	s.calls++
	s.query = query
	s.args = args
	return s.rows, s.err
}

func newEventsReport() *Report {
	r := New("events", Fragments{From: []string{"events"}, GroupBy: []string{"day"}})
	r.AddColumn("day", ColumnDate, ColumnOptions{})
	r.AddColumn("total", ColumnInteger, ColumnOptions{SQL: "count(1)"})
	return r
}

func TestAcceptArray(t *testing.T) {
	assert.Equal(t, "1,2,3", AcceptArray([]string{"1", "2", "3"}, ","))
	assert.Equal(t, "a and 2", AcceptArray([]interface{}{"a", 2}, " and "))
	assert.Equal(t, 1, AcceptArray(1, ","))
	assert.Equal(t, "events", AcceptArray("events", ","))
}

func TestFragmentsUseSeparators(t *testing.T) {
	r := New("joined", Fragments{
		From:    []string{"events", "users"},
		Joins:   []string{"join a on a.id = events.a_id", "join b on b.id = a.b_id"},
		Where:   []string{"x = 1", "y = 2"},
		GroupBy: []string{"x", "y"},
		OrderBy: []string{"x", "y desc"},
	})
	assert.Equal(t, "events,users", r.From)
	assert.Equal(t, "join a on a.id = events.a_id join b on b.id = a.b_id", r.Joins)
	assert.Equal(t, "x = 1 and y = 2", r.Where)
	assert.Equal(t, "x,y", r.GroupBy)
	assert.Equal(t, "x,y desc", r.OrderBy)
}

func TestLookupsReturnDeclaredValues(t *testing.T) {
	r := newEventsReport()
	p1 := r.AddParam("a", ParamTextField, nil)
	p2 := r.AddParam("b", ParamDate, nil)

	assert.Same(t, p1, r.Param("a"))
	assert.Same(t, p2, r.Param("b"))
	assert.Nil(t, r.Param("missing"))

	for i, c := range r.Columns {
		assert.Same(t, c, r.Column(c.Name))
		idx, ok := r.ColumnIndex(c.Name)
		assert.True(t, ok)
		assert.Equal(t, i, idx)
	}
	assert.Nil(t, r.Column("missing"))
	_, ok := r.ColumnIndex("missing")
	assert.False(t, ok)
}

func TestAttributesBack(t *testing.T) {
	r := newEventsReport()
	r.AddParam("q", ParamTextField, nil)

	attrs := r.Attributes()
	assert.Equal(t, "events", attrs["id"])
	assert.Equal(t, "events", attrs["name"])
	assert.Contains(t, attrs, "q")
	assert.NotContains(t, attrs, "back")

	back := map[string]interface{}{"name": "overview"}
	r.Back = back
	assert.Equal(t, back, r.Attributes()["back"])
}

func TestToSQL(t *testing.T) {
	sql, err := newEventsReport().ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT day AS day, count(1) AS total FROM events GROUP BY day", sql)

	full := New("full", Fragments{
		From:    "events e",
		Joins:   "join users u on u.id = e.user_id",
		Where:   []string{"e.kind = :kind", "u.active"},
		GroupBy: "u.name",
		OrderBy: "total desc",
	})
	full.AddColumn("name", ColumnString, ColumnOptions{SQL: "u.name"})
	full.AddColumn("total", ColumnInteger, ColumnOptions{SQL: "count(1)"})
	sql, err = full.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT u.name AS name, count(1) AS total FROM events e join users u on u.id = e.user_id WHERE e.kind = :kind and u.active GROUP BY u.name ORDER BY total desc", sql)
}

func TestToSQLValidates(t *testing.T) {
	cases := map[string]func(r *Report){
		"no from":          func(r *Report) { r.From = " " },
		"no columns":       func(r *Report) { r.Columns = nil },
		"duplicate column": func(r *Report) { r.AddColumn("day", ColumnDate, ColumnOptions{}) },
		"bad alias":        func(r *Report) { r.AddColumn("x; drop table t", ColumnString, ColumnOptions{}) },
		"duplicate param": func(r *Report) {
			r.AddParam("p", ParamTextField, nil)
			r.AddParam("p", ParamTextField, nil)
		},
		"chart reference": func(r *Report) { r.AddChart("c", ChartLine, "day", []string{"missing"}, nil) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := newEventsReport()
			mutate(r)
			_, err := r.ToSQL()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidReport))
		})
	}
}

func TestGenerateAndCSV(t *testing.T) {
	store := &stubStore{rows: [][]interface{}{{"2020-01-01", 3}, {"2020-01-02", 5}}}
	r := newEventsReport()

	require.NoError(t, r.Generate(context.Background(), store, nil))
	assert.Equal(t, "SELECT day AS day, count(1) AS total FROM events GROUP BY day", store.query)
	assert.Empty(t, store.args)
	assert.Len(t, r.Rows, 2)

	out, err := r.ToCSV()
	require.NoError(t, err)
	assert.Equal(t, "day,total\n2020-01-01,3\n2020-01-02,5\n", out)
}

func TestHiddenColumnLeavesCSV(t *testing.T) {
	store := &stubStore{rows: [][]interface{}{{"2020-01-01", 3}, {"2020-01-02", 5}}}
	r := newEventsReport()
	r.Column("total").Hide()

	require.NoError(t, r.Generate(context.Background(), store, nil))
	out, err := r.ToCSV()
	require.NoError(t, err)
	assert.Equal(t, "day\n2020-01-01\n2020-01-02\n", out)
	assert.Len(t, r.Columns, 2)
	assert.Equal(t, []interface{}{"2020-01-02", 5}, r.Rows[1])
	assert.Len(t, r.VisibleColumns(), 1)
}

func TestToCSVQuotesSpecialCells(t *testing.T) {
	r := New("notes", Fragments{From: "notes"})
	r.AddColumn("author", ColumnString, ColumnOptions{})
	r.AddColumn("note", ColumnString, ColumnOptions{})
	store := &stubStore{rows: [][]interface{}{{"ann", `he said "hi"`}, {"bob", "a\nb"}, {"cy", "x, y"}}}

	require.NoError(t, r.Generate(context.Background(), store, nil))
	out, err := r.ToCSV()
	require.NoError(t, err)
	assert.Equal(t, "author,note\nann,\"he said \"\"hi\"\"\"\nbob,\"a\nb\"\ncy,\"x, y\"\n", out)
}

func TestGenerateOverridesOnlyMatchingParams(t *testing.T) {
	r := newEventsReport()
	text := r.AddParam("text_field_test", ParamTextField, nil)
	other := r.AddParam("other", ParamTextField, nil)
	require.NoError(t, other.SetValue("kept"))

	err := r.Generate(context.Background(), &stubStore{}, map[string]interface{}{
		"text_field_test": "foobar",
		"unrelated":       "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "foobar", text.Value())
	assert.Equal(t, "kept", other.Value())
	assert.Nil(t, r.Param("unrelated"))
}

func TestGenerateBindsParams(t *testing.T) {
	r := newEventsReport()
	r.Where = "day >= :start and kind = :kind"
	r.AddParam("start", ParamDate, nil)
	r.AddParam("kind", ParamTextField, nil)
	store := &stubStore{}

	err := r.Generate(context.Background(), store, map[string]interface{}{"start": "2020-01-01", "kind": "x' or 1=1 --"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT day AS day, count(1) AS total FROM events WHERE day >= ? and kind = ? GROUP BY day", store.query)
	assert.Equal(t, []interface{}{time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), "x' or 1=1 --"}, store.args)
	assert.Empty(t, r.Rows)
	assert.NotNil(t, r.Rows)
}

func TestGenerateLeavesQuotedLiteralsAlone(t *testing.T) {
	r := newEventsReport()
	r.Where = "created_at >= '2020-01-01 12:30:00' and kind = :kind and note <> '?'"
	r.AddParam("kind", ParamTextField, nil)
	store := &stubStore{}

	require.NoError(t, r.Generate(context.Background(), store, map[string]interface{}{"kind": "click"}))
	assert.Equal(t, "SELECT day AS day, count(1) AS total FROM events WHERE created_at >= '2020-01-01 12:30:00' and kind = ? and note <> '?' GROUP BY day", store.query)
	assert.Equal(t, []interface{}{"click"}, store.args)

	sql, err := r.InlineSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT day AS day, count(1) AS total FROM events WHERE created_at >= '2020-01-01 12:30:00' and kind = 'click' and note <> '?' GROUP BY day", sql)
}

func TestMaskLiterals(t *testing.T) {
	query := `a = 'it''s :x ?' and b = "c:d" and e = :e`
	masked, unmask := MaskLiterals(query)
	assert.NotContains(t, masked, "'")
	assert.NotContains(t, masked, ":x")
	assert.NotContains(t, masked, "?")
	assert.Contains(t, masked, "e = :e")
	assert.Equal(t, query, unmask(masked))

	masked, unmask = MaskLiterals("x = 'open :y")
	assert.NotContains(t, masked, ":y")
	assert.Equal(t, "x = 'open :y", unmask(masked))

	masked, unmask = MaskLiterals("plain = :p")
	assert.Equal(t, "plain = :p", masked)
	assert.Equal(t, "plain = ?", unmask("plain = ?"))
}

func TestGenerateUndeclaredParamReference(t *testing.T) {
	r := newEventsReport()
	r.Where = "kind = :missing"
	r.AddParam("kind", ParamTextField, nil)

	err := r.Generate(context.Background(), &stubStore{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidReport))
}

func TestGenerateCoercionErrorStopsBeforeQuery(t *testing.T) {
	r := newEventsReport()
	r.AddParam("start", ParamDate, nil)
	store := &stubStore{}

	err := r.Generate(context.Background(), store, map[string]interface{}{"start": "yesterday"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDate))
	assert.Zero(t, store.calls)
}

func TestGenerateWrapsStoreErrors(t *testing.T) {
	cause := errors.New("connection reset")
	err := newEventsReport().Generate(context.Background(), &stubStore{err: cause}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQueryExecution))
	assert.True(t, errors.Is(err, cause))
}

func TestGenerateRejectsRowShape(t *testing.T) {
	store := &stubStore{rows: [][]interface{}{{"2020-01-01"}}}
	err := newEventsReport().Generate(context.Background(), store, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRowShape))
}

func TestGenerateRunsPrepare(t *testing.T) {
	r := newEventsReport()
	r.AddParam("limit_kind", ParamTextField, nil)
	r.Prepare = func(r *Report) error {
		if r.Param("limit_kind").Value() != nil {
			r.Where = "kind = :limit_kind"
		}
		return nil
	}
	store := &stubStore{}

	require.NoError(t, r.Generate(context.Background(), store, map[string]interface{}{"limit_kind": "click"}))
	assert.Contains(t, store.query, "WHERE kind = ?")
	assert.Equal(t, []interface{}{"click"}, store.args)
}

type recordingProcessor struct {
	order *[]string
}

func (p recordingProcessor) PostProcess(_ *Report, c *Column) error {
	*p.order = append(*p.order, c.Name)
	return nil
}

func TestPostProcessorsRunOnceInColumnOrder(t *testing.T) {
	var order []string
	r := New("ordered", Fragments{From: "t"})
	r.AddColumn("b", ColumnString, ColumnOptions{Processor: recordingProcessor{&order}})
	r.AddColumn("a", ColumnString, ColumnOptions{})
	r.AddColumn("c", ColumnString, ColumnOptions{Processor: recordingProcessor{&order}})

	require.NoError(t, r.Generate(context.Background(), &stubStore{rows: [][]interface{}{{1, 2, 3}}}, nil))
	assert.Equal(t, []string{"b", "c"}, order)
}

func TestInlineSQL(t *testing.T) {
	r := newEventsReport()
	r.Where = "day >= :start and label = :label and note <> '?'"
	r.AddParam("start", ParamDate, nil)
	r.AddParam("label", ParamTextField, nil)
	require.NoError(t, r.Apply(map[string]interface{}{"start": "2020-01-01", "label": "it's"}))

	sql, err := r.InlineSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT day AS day, count(1) AS total FROM events WHERE day >= '2020-01-01' and label = 'it''s' and note <> '?' GROUP BY day", sql)
}

func TestInline(t *testing.T) {
	assert.Equal(t, "NULL", Inline(nil))
	assert.Equal(t, "TRUE", Inline(true))
	assert.Equal(t, "FALSE", Inline(false))
	assert.Equal(t, "42", Inline(42))
	assert.Equal(t, "1.5", Inline(1.5))
	assert.Equal(t, "'2013-09-16'", Inline(time.Date(2013, 9, 16, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, `'a''b\\c'`, Inline(`a'b\c`))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "abc", FormatValue([]byte("abc")))
	assert.Equal(t, "2020-01-02", FormatValue(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2020-01-02T03:04:05Z", FormatValue(time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Equal(t, "0.25", FormatValue(0.25))
	assert.Equal(t, "7", FormatValue(int64(7)))
	assert.Equal(t, "true", FormatValue(true))
}
