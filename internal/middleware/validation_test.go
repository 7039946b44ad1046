package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "phtourism/internal/errors"
	"phtourism/internal/shared/testutil"
	"phtourism/internal/views"
	"phtourism/pkg/contracts/domain"
)

func TestFilterValidator_Parse(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	fv := NewFilterValidator(logger)

	tests := []struct {
		name      string
		query     string
		want      FilterQuery
		wantField string
	}{
		{name: "empty", query: "", want: FilterQuery{}},
		{
			name:  "all parameters",
			query: "years=2019,2023&region=Region+I&traveler=Domestic&limit=10&view=trends",
			want:  FilterQuery{Years: []int{2019, 2023}, Region: "Region I", Traveler: "domestic", Limit: 10, View: "trends"},
		},
		{name: "spaces in years", query: "years=2019,%202021,", want: FilterQuery{Years: []int{2019, 2021}}},
		{name: "bad year", query: "years=2019,abc", wantField: "years"},
		{name: "year out of range", query: "years=1800", wantField: "years[0]"},
		{name: "bad traveler", query: "traveler=tourist", wantField: "traveler"},
		{name: "bad limit", query: "limit=ten", wantField: "limit"},
		{name: "negative limit", query: "limit=-1", wantField: "limit"},
		{name: "limit too large", query: "limit=5000", wantField: "limit"},
		{name: "bad view", query: "view=bubbles", wantField: "view"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/views?"+tt.query, nil)
			got, err := fv.Parse(req)

			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}

			var apiErr *apperrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, 400, apiErr.StatusCode)
			assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)

			details, ok := apiErr.Details.(apperrors.ValidationErrors)
			require.True(t, ok)
			require.NotEmpty(t, details.Errors)
			assert.Equal(t, tt.wantField, details.Errors[0].Field)
		})
	}
}

func TestFilterQuery_Filters(t *testing.T) {
	q := FilterQuery{Years: []int{2023}, Region: "Region II", Traveler: "overseas"}
	assert.Equal(t, views.Filters{Years: []int{2023}, Region: "Region II", Traveler: domain.TravelerOverseas}, q.Filters())

	assert.Equal(t, domain.TravelerTotal, FilterQuery{}.Filters().Traveler)
}
