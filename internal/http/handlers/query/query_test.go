package query

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/union-portal/internal/models"
)

func TestPage(t *testing.T) {
	limit, offset := Page(httptest.NewRequest(http.MethodGet, "/x?limit=10&offset=40", nil))
	assert.Equal(t, 10, limit)
	assert.Equal(t, 40, offset)

	limit, offset = Page(httptest.NewRequest(http.MethodGet, "/x?limit=abc&offset=-3", nil))
	assert.Equal(t, models.DefaultLimit, limit)
	assert.Equal(t, 0, offset)
}

func TestDate(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x?from=2024-05-01&to=05/06/2024", nil)

	from, err := Date(r, "from")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), from)

	_, err = Date(r, "to")
	assert.EqualError(t, err, "parameter to must be a date in format YYYY-MM-DD")

	missing, err := Date(r, "until")
	require.NoError(t, err)
	assert.True(t, missing.IsZero())
}
