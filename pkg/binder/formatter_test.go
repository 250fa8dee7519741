package binder

import (
	"reflect"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/stretchr/testify/assert"
)

type mockFieldError struct {
	tag   string
	field string
	param string
	kind  reflect.Kind
}

func (e *mockFieldError) Error() string           { return "Mock Field Error" }
func (e *mockFieldError) Tag() string             { return e.tag }
func (e *mockFieldError) ActualTag() string       { return e.tag }
func (e *mockFieldError) Namespace() string       { return "" }
func (e *mockFieldError) StructNamespace() string { return "" }
func (e *mockFieldError) Field() string           { return e.field }
func (e *mockFieldError) StructField() string     { return "" }
func (e *mockFieldError) Value() interface{}      { return "" }
func (e *mockFieldError) Param() string           { return e.param }
func (e *mockFieldError) Kind() reflect.Kind {
	if e.kind == 0 {
		return reflect.String
	}
	return e.kind
}
func (e *mockFieldError) Type() reflect.Type               { return reflect.TypeOf("") }
func (e *mockFieldError) Translate(_ ut.Translator) string { return "" }

func TestFormatValidationError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		tag   string
		param string
		kind  reflect.Kind
		msg   string
	}{
		{date, "", 0, `"reset_token" should be in the format of YYYY-MM-DD`},
		{email, "", 0, `"reset_token" is not a valid email`},
		// String min/max
		{mx, "72", reflect.String, `"reset_token" length must be less than or equal to 72 characters`},
		{mx, "1", reflect.String, `"reset_token" length must be less than or equal to 1 character`},
		{mn, "8", reflect.String, `"reset_token" length must be greater than or equal to 8 characters`},
		{mn, "1", reflect.String, `"reset_token" length must be greater than or equal to 1 character`},
		// Numeric min/max
		{mx, "100", reflect.Int, `"reset_token" must be less than or equal to 100`},
		{mn, "1", reflect.Int64, `"reset_token" must be greater than or equal to 1`},
		{mn, "0", reflect.Float64, `"reset_token" must be greater than or equal to 0`},
		// Slice min/max
		{mx, "5", reflect.Slice, `"reset_token" length must be less than or equal to 5 elements`},
		{mx, "1", reflect.Slice, `"reset_token" length must be less than or equal to 1 element`},
		{mn, "2", reflect.Slice, `"reset_token" length must be greater than or equal to 2 elements`},
		// Other
		{ne, "new", 0, `"reset_token" can't be "new"`},
		{oneof, "new loaned released", 0, `"reset_token" must be one of the following: "new", "loaned", "released"`},
		{required, "", 0, `"reset_token" is required`},
		{"unhandled", "", 0, `"reset_token" is invalid`},
	}

	for _, tt := range cases {
		err := mockFieldError{tag: tt.tag, field: "reset_token", param: tt.param, kind: tt.kind}
		assert.Equal(t, tt.msg, formatValidationError(&err))
	}
}
