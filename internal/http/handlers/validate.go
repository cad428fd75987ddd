package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationBody reports the first failing field of a validator error.
func validationBody(err error) errorBody {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errorBody{Code: "bad_request", Message: "invalid payload"}
	}
	fe := verrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	msg := fmt.Sprintf("%s failed %q", field, fe.Tag())
	if fe.Param() != "" {
		msg = fmt.Sprintf("%s failed %q (%s)", field, fe.Tag(), fe.Param())
	}
	return errorBody{Code: "bad_request", Message: msg, Field: field}
}
