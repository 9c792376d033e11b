package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/equiscan/internal/warehouse"
)

func TestLoadFilters_DecodesParametersAndSessions(t *testing.T) {
	rows := []warehouse.ScannerFilter{
		{
			Name:       "low_float_runners",
			Enabled:    true,
			Priority:   1,
			Sessions:   "MARKET_OPEN, POST_MARKET",
			Parameters: `{"min_rvol": 5, "max_float": 20000000}`,
		},
	}

	filters, errs := LoadFilters(rows)

	require.Empty(t, errs)
	require.Len(t, filters, 1)
	f := filters[0]
	assert.Equal(t, "low_float_runners", f.Name)
	assert.True(t, f.Enabled)
	require.NotNil(t, f.Parameters.MinRVOL)
	assert.Equal(t, 5.0, *f.Parameters.MinRVOL)
	require.NotNil(t, f.Parameters.MaxFloat)
	assert.Equal(t, 20000000.0, *f.Parameters.MaxFloat)
	assert.Len(t, f.Sessions, 2)
}

func TestLoadFilters_CollectsErrorsWithoutAbortingOtherRows(t *testing.T) {
	rows := []warehouse.ScannerFilter{
		{Name: "broken", Parameters: `{not json`},
		{Name: "fine", Parameters: `{}`},
	}

	filters, errs := LoadFilters(rows)

	require.Len(t, errs, 1)
	require.Len(t, filters, 1)
	assert.Equal(t, "fine", filters[0].Name)
}

func TestLoadFilters_UnknownSessionNameCollectsError(t *testing.T) {
	rows := []warehouse.ScannerFilter{
		{Name: "weird", Parameters: `{}`, Sessions: "LUNCH_BREAK"},
	}

	filters, errs := LoadFilters(rows)

	require.Len(t, errs, 1)
	require.Len(t, filters, 1)
	assert.Empty(t, filters[0].Sessions)
}
