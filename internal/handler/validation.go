package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Custom binding tags for decimal.Decimal fields.
const (
	tagPositiveDecimal    = "positive_decimal"
	tagNonNegativeDecimal = "nonnegative_decimal"
	tagMoney              = "money"
)

// Monetary values carry at most 9 integer digits and 2 fraction digits.
const (
	moneyIntegerDigits  = 9
	moneyFractionDigits = 2
)

var moneyIntegerLimit = decimal.New(1, moneyIntegerDigits)

var (
	registerOnce sync.Once
	registerErr  error
)

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// BadRequestErrorResponse is the body of a 400 response.
type BadRequestErrorResponse struct {
	Message string            `json:"message"`
	Details []ValidationError `json:"details,omitempty"`
}

// RegisterValidators installs the decimal rules on gin's validator.
// It is safe to call more than once.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("gin validator is not go-playground/validator")
			return
		}

		v.RegisterTagNameFunc(jsonFieldName)

		rules := map[string]validator.Func{
			tagPositiveDecimal: func(fl validator.FieldLevel) bool {
				d, ok := fl.Field().Interface().(decimal.Decimal)
				return ok && d.IsPositive()
			},
			tagNonNegativeDecimal: func(fl validator.FieldLevel) bool {
				d, ok := fl.Field().Interface().(decimal.Decimal)
				return ok && !d.IsNegative()
			},
			tagMoney: func(fl validator.FieldLevel) bool {
				d, ok := fl.Field().Interface().(decimal.Decimal)
				return ok && isMoney(d)
			},
		}
		for tag, fn := range rules {
			if err := v.RegisterValidation(tag, fn); err != nil {
				registerErr = fmt.Errorf("failed to register %q: %w", tag, err)
				return
			}
		}
	})
	return registerErr
}

// isMoney reports whether d fits 9 integer and 2 fraction digits.
// Trailing fraction zeros do not count.
func isMoney(d decimal.Decimal) bool {
	if !d.Equal(d.Truncate(moneyFractionDigits)) {
		return false
	}
	return d.Abs().LessThan(moneyIntegerLimit)
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

func validationDetails(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	details := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, ValidationError{
			Field:   fe.Field(),
			Message: errorMessage(fe),
			Type:    fe.Tag(),
		})
	}
	return details
}

func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case tagPositiveDecimal:
		return "Value must be greater than 0"
	case tagNonNegativeDecimal:
		return "Value must be greater than or equal to 0"
	case tagMoney:
		return fmt.Sprintf("Value must have at most %d integer and %d fraction digits",
			moneyIntegerDigits, moneyFractionDigits)
	default:
		return "Invalid value"
	}
}

// respondBindError writes a 400 for a failed ShouldBindJSON.
func respondBindError(c *gin.Context, err error) {
	if details := validationDetails(err); details != nil {
		c.JSON(http.StatusBadRequest, BadRequestErrorResponse{
			Message: "Invalid request data",
			Details: details,
		})
		return
	}
	c.JSON(http.StatusBadRequest, BadRequestErrorResponse{
		Message: "Malformed request body: " + err.Error(),
	})
}
