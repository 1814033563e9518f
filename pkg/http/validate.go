package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// moneyPlaces is the precision the ledger books amounts at.
const moneyPlaces = 2

var validate = newValidator()

// newValidator reports fields by their wire name, validates decimals by
// their string form and adds the economy tags:
//
//	money: a positive amount with at most two decimal places
//	actor: a non-nil actor id, as uuid.UUID or its string form
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(wireName)
	v.RegisterCustomTypeFunc(func(f reflect.Value) interface{} {
		return f.Interface().(decimal.Decimal).String()
	}, decimal.Decimal{})
	_ = v.RegisterValidation("money", validMoney)
	_ = v.RegisterValidation("actor", validActor)
	return v
}

// wireName prefers the json, then param, then query tag.
func wireName(f reflect.StructField) string {
	for _, tag := range []string{"json", "param", "query"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func validMoney(fl validator.FieldLevel) bool {
	var d decimal.Decimal
	switch v := fl.Field().Interface().(type) {
	case float64:
		d = decimal.NewFromFloat(v)
	case string:
		var err error
		if d, err = decimal.NewFromString(v); err != nil {
			return false
		}
	default:
		return false
	}
	return d.IsPositive() && d.Equal(d.Round(moneyPlaces))
}

func validActor(fl validator.FieldLevel) bool {
	switch v := fl.Field().Interface().(type) {
	case uuid.UUID:
		return v != uuid.Nil
	case string:
		id, err := uuid.Parse(v)
		return err == nil && id != uuid.Nil
	}
	return false
}

// Validator plugs the shared validator into echo's c.Validate.
type Validator struct{}

func (Validator) Validate(i interface{}) error {
	return validate.Struct(i)
}

// ReadAndValidateRequest binds path, query and body into req, fills
// `default` tags, then validates. A nil result means req is usable;
// otherwise it is a []ValidationError for BadRequestResponse.
func ReadAndValidateRequest(c echo.Context, req interface{}) []ValidationError {
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return toValidationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) []ValidationError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make([]ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			out = append(out, ValidationError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Namespace()[strings.Index(fe.Namespace(), ".")+1:],
				Message: fieldMessage(fe),
				Params:  fieldParams(fe),
			})
		}
		return out
	}

	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return []ValidationError{{Code: "ERR_MALFORMED", Message: msg}}
}

// tagMessages holds "<field> <text>" templates; %s is the tag parameter.
var tagMessages = map[string]string{
	"required": "is required",
	"uuid":     "must be a valid UUID",
	"actor":    "must be a non-nil actor id",
	"money":    "must be a positive amount with at most 2 decimal places",
	"nefield":  "must differ from %s",
	"datetime": "must be an RFC3339 timestamp",
	"oneof":    "must be one of: %s",
	"gt":       "must be greater than %s",
	"gte":      "must be at least %s",
	"lt":       "must be less than %s",
	"lte":      "must be at most %s",
	"min":      "must have at least %s items",
	"max":      "must have at most %s items",
}

func fieldMessage(fe validator.FieldError) string {
	tmpl, ok := tagMessages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
	}
	param := fe.Param()
	switch fe.Tag() {
	case "oneof":
		param = strings.ReplaceAll(param, " ", ", ")
	case "min", "max":
		if fe.Kind() == reflect.String {
			tmpl = strings.Replace(tmpl, "items", "characters", 1)
		}
	}
	if strings.Contains(tmpl, "%s") {
		tmpl = fmt.Sprintf(tmpl, param)
	}
	return fe.Field() + " " + tmpl
}

func fieldParams(fe validator.FieldError) map[string]interface{} {
	switch fe.Tag() {
	case "min", "gte":
		return map[string]interface{}{"min": fe.Param()}
	case "max", "lte":
		return map[string]interface{}{"max": fe.Param()}
	case "gt", "lt":
		return map[string]interface{}{"value": fe.Param()}
	case "oneof":
		return map[string]interface{}{"options": strings.Split(fe.Param(), " ")}
	case "money":
		return map[string]interface{}{"places": moneyPlaces}
	}
	return nil
}
