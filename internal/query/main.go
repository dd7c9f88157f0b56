package query

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// Paging limits shared by every listing endpoint.
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// Define a single validator to do all of the validations for us.
var v = validator.New()

// Page describes the slice of a listing requested by the caller.
type Page struct {
	Offset int
	Limit  int
}

// ValidateBooleanQueryParam extracts a Boolean query parameter and validates it.
func ValidateBooleanQueryParam(ctx echo.Context, name string, defaultValue *bool) (bool, error) {
	errMsg := fmt.Sprintf("invalid query parameter: %s", name)
	value := ctx.QueryParam(name)

	// Assume that the parameter is required if there's no default.
	if defaultValue == nil && value == "" {
		return false, fmt.Errorf("missing required query parameter: %s", name)
	}

	// If no value was provided at this point then the parameter is optional; return the default value.
	if value == "" {
		return *defaultValue, nil
	}

	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.Wrap(err, errMsg)
	}
	return result, nil
}

// ValidateIntQueryParam extracts an optional integer query parameter and validates it.
func ValidateIntQueryParam(ctx echo.Context, name string, defaultValue *int32, checks ...string) (int32, error) {
	errMsg := fmt.Sprintf("invalid query parameter: %s", name)
	value := ctx.QueryParam(name)
	var result int32

	// Assume that the parameter is required if there's no default.
	if defaultValue == nil && value == "" {
		return result, fmt.Errorf("missing required query parameter: %s", name)
	}

	// If no value was provided at this point then the parameter is optional; return the default value.
	if value == "" {
		return *defaultValue, nil
	}

	parsed, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return result, errors.Wrap(err, errMsg)
	}
	result = int32(parsed)

	// Perform any checks that we're supposed to perform.
	for _, check := range checks {
		if err = v.Var(result, check); err != nil {
			return result, errors.Wrap(err, errMsg)
		}
	}

	return result, nil
}

// ValidateLimit extracts the optional `limit` query parameter, which must be between 1 and MaxLimit.
func ValidateLimit(ctx echo.Context) (int, error) {
	defaultLimit := int32(DefaultLimit)
	limit, err := ValidateIntQueryParam(ctx, "limit", &defaultLimit, fmt.Sprintf("gte=1,lte=%d", MaxLimit))
	return int(limit), err
}

// ValidatePage extracts the optional `offset` and `limit` query parameters.
func ValidatePage(ctx echo.Context) (*Page, error) {
	defaultOffset := int32(0)
	offset, err := ValidateIntQueryParam(ctx, "offset", &defaultOffset, "gte=0")
	if err != nil {
		return nil, err
	}

	limit, err := ValidateLimit(ctx)
	if err != nil {
		return nil, err
	}

	return &Page{Offset: int(offset), Limit: limit}, nil
}

// ValidateEnumQueryParam extracts the value of an enumeration query parameter. The value will always be converted to
// lower case before validating and returning it.
func ValidateEnumQueryParam(ctx echo.Context, name string, vals []string, defaultValue *string) (string, error) {
	value := strings.ToLower(ctx.QueryParam(name))

	// Assume that the value is required if there's no default.
	if defaultValue == nil && value == "" {
		return "", fmt.Errorf("missing required query parameter: %s", name)
	}

	// If no value was provided at this point then the parameter is optional; return the default value.
	if value == "" {
		return *defaultValue, nil
	}

	if !slices.Contains(vals, value) {
		return "", fmt.Errorf("invalid query parameter: %s; valid values: %s", name, strings.Join(vals, ", "))
	}
	return value, nil
}

// ValidateSortField extracts the `sort-field` query parameter and returns the column that it maps to. The keys of
// the columns map are the field names accepted from callers.
func ValidateSortField(ctx echo.Context, columns map[string]string, defaultField string) (string, error) {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	field, err := ValidateEnumQueryParam(ctx, "sort-field", names, &defaultField)
	if err != nil {
		return "", err
	}
	return columns[field], nil
}

// ValidateSortOrder extracts the value of a sort order query parameter and validates it. The value will always be
// converted to lower case before validating and returning it.
func ValidateSortOrder(ctx echo.Context) (string, error) {
	defaultSortOrder := "asc"
	return ValidateEnumQueryParam(ctx, "sort-order", []string{"asc", "desc"}, &defaultSortOrder)
}
