package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "phtourism/internal/errors"
	"phtourism/internal/views"
	"phtourism/pkg/contracts/domain"
)

// FilterQuery is the validated form of the view query parameters.
type FilterQuery struct {
	Years    []int  `json:"years" validate:"omitempty,max=50,dive,gte=1900,lte=2100"`
	Region   string `json:"region" validate:"max=128"`
	Traveler string `json:"traveler" validate:"omitempty,oneof=total domestic foreign overseas"`
	Limit    int    `json:"limit" validate:"gte=0,lte=2000"`
	View     string `json:"view" validate:"omitempty,oneof=totals rankings trends unmatched issues"`
}

// Filters converts the query into engine filters.
func (q FilterQuery) Filters() views.Filters {
	traveler, _ := domain.ParseTravelerType(q.Traveler)
	return views.Filters{Years: q.Years, Region: q.Region, Traveler: traveler}
}

// FilterValidator parses and validates view query parameters.
type FilterValidator struct {
	validator *validator.Validate
	logger    *slog.Logger
}

// NewFilterValidator creates a validator that reports fields by their JSON
// names.
func NewFilterValidator(logger *slog.Logger) *FilterValidator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &FilterValidator{
		validator: v,
		logger:    logger.With(slog.String("component", "filter_validator")),
	}
}

// Parse reads years, region, traveler, limit and view from the query string.
// Errors are *errors.APIError values ready to be handled.
func (fv *FilterValidator) Parse(r *http.Request) (FilterQuery, error) {
	q, err := fv.ParseValues(r.URL.Query())
	if err != nil {
		fv.logger.DebugContext(r.Context(), "invalid filter query",
			slog.String("query", r.URL.RawQuery),
			slog.String("error", err.Error()))
	}
	return q, err
}

// ParseValues is Parse over already decoded values.
func (fv *FilterValidator) ParseValues(values url.Values) (FilterQuery, error) {
	var q FilterQuery
	var problems []apperrors.ValidationError

	if raw := values.Get("years"); raw != "" {
		years, err := parseYears(raw)
		if err != nil {
			problems = append(problems, apperrors.ValidationError{Field: "years", Message: err.Error()})
		}
		q.Years = years
	}

	q.Region = strings.TrimSpace(values.Get("region"))
	q.Traveler = strings.ToLower(strings.TrimSpace(values.Get("traveler")))
	q.View = strings.ToLower(strings.TrimSpace(values.Get("view")))

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			problems = append(problems, apperrors.ValidationError{Field: "limit", Message: "limit must be a valid integer"})
		}
		q.Limit = limit
	}

	if len(problems) == 0 {
		if err := fv.Validate(q); err != nil {
			return FilterQuery{}, err
		}
		return q, nil
	}
	return FilterQuery{}, apperrors.NewValidationErrors(problems)
}

// Validate runs the struct tags of v.
func (fv *FilterValidator) Validate(v interface{}) error {
	err := fv.validator.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return apperrors.InvalidRequestWithError(err)
	}
	problems := make([]apperrors.ValidationError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		problems = append(problems, apperrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	return apperrors.NewValidationErrors(problems)
}

func parseYears(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	years := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		y, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("year %q is not an integer", p)
		}
		years = append(years, y)
	}
	return years, nil
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		if err.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at most %s entries", field, param)
		}
		if err.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}
