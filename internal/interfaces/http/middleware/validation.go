package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/invoicing/backend/internal/domain/billing"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

var setupOnce sync.Once

// SetupValidator registers the billing tags on gin's validator and reports
// field names by their JSON (or form) tag. Safe to call more than once.
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		RegisterValidations(v)
	})
}

// RegisterValidations adds payment_method, invoice_status and decimal_gt0 to v
func RegisterValidations(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return billing.PaymentMethod(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("invoice_status", func(fl validator.FieldLevel) bool {
		return billing.InvoiceStatus(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("decimal_gt0", func(fl validator.FieldLevel) bool {
		switch d := fl.Field().Interface().(type) {
		case decimal.Decimal:
			return d.IsPositive()
		case *decimal.Decimal:
			return d != nil && d.IsPositive()
		}
		return false
	})
}

// ValidationDetails converts a binding error into per-field details.
// Errors that are not field validations yield nil.
func ValidationDetails(err error) []dto.ValidationDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make([]dto.ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, dto.ValidationDetail{
			Field:   fieldPath(e),
			Message: validationMessage(e),
		})
	}
	return details
}

// HandleBindError writes the 400 response for a failed ShouldBind call
func HandleBindError(c *gin.Context, err error) {
	requestID := GetRequestID(c)
	if details := ValidationDetails(err); details != nil {
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse("Request validation failed", requestID, details))
		return
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		c.JSON(http.StatusRequestEntityTooLarge,
			dto.NewErrorResponseWithRequestID(dto.ErrCodeBodyTooLarge, "Request body exceeds maximum allowed size", requestID))
	case errors.As(err, &typeErr):
		c.JSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(dto.ErrCodeInvalidJSON,
			fmt.Sprintf("Field %q has the wrong type", typeErr.Field), requestID))
	case errors.As(err, &syntaxErr):
		c.JSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(dto.ErrCodeInvalidJSON, "Malformed JSON body", requestID))
	default:
		c.JSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(dto.ErrCodeBadRequest, err.Error(), requestID))
	}
}

// fieldPath drops the top-level struct name: "CreateInvoiceRequest.items[0].quantity" -> "items[0].quantity"
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "uuid":
		return "Invalid UUID format"
	case "datetime":
		return "Must be a date in " + e.Param() + " format"
	case "min":
		if e.Kind() == reflect.Slice {
			return "Must contain at least " + e.Param() + " entries"
		}
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "payment_method":
		return "Must be one of: cash, card, bank_transfer, check, other"
	case "invoice_status":
		return "Must be one of: draft, sent, partial, paid, overdue, cancelled"
	case "decimal_gt0":
		return "Must be greater than 0"
	default:
		return "Invalid value"
	}
}
