package report

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefinitions() []Definition {
	return []Definition{
		{Name: "base", Abstract: true, Build: func() (*Report, error) { return newEventsReport(), nil }},
		{Name: "zeta", Build: func() (*Report, error) { return newEventsReport(), nil }},
		{Name: "alpha", Build: func() (*Report, error) { return newEventsReport(), nil }},
	}
}

func TestRegistryNames(t *testing.T) {
	reg, err := NewRegistry(testDefinitions()...)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, reg.Names())
	assert.True(t, reg.Has("alpha"))
	assert.False(t, reg.Has("base"))
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	defs := append(testDefinitions(), Definition{Name: "alpha", Build: func() (*Report, error) { return newEventsReport(), nil }})
	_, err := NewRegistry(defs...)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidReport))
}

func TestRegistryNewUnknownOrAbstract(t *testing.T) {
	reg, err := NewRegistry(testDefinitions()...)
	require.NoError(t, err)

	for _, name := range []string{"missing", "base"} {
		_, err := reg.New(name)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrReportNotFound))
	}
}

func TestRegistryInstancesAreIsolated(t *testing.T) {
	reg, err := NewRegistry(testDefinitions()...)
	require.NoError(t, err)

	first, err := reg.New("alpha")
	require.NoError(t, err)
	second, err := reg.New("alpha")
	require.NoError(t, err)
	require.NotSame(t, first, second)

	store := &stubStore{rows: [][]interface{}{{"2020-01-01", 1}}}
	require.NoError(t, first.Generate(context.Background(), store, nil))
	assert.Len(t, first.Rows, 1)
	assert.Empty(t, second.Rows)
}

func TestRegistryList(t *testing.T) {
	reg, err := NewRegistry(testDefinitions()...)
	require.NoError(t, err)

	reports, err := reg.List()
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "alpha", reports[0].Name)
	assert.Equal(t, "zeta", reports[1].Name)
}
