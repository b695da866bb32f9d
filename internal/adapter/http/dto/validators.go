package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"wallet-escrow-engine/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var referenceRe = regexp.MustCompile(`^[a-f0-9]{8}$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("payout_address", validatePayoutAddress)
	}
}

// validatePayoutAddress defers to the domain rule so the binding tag and
// the service-level check can never drift apart.
func validatePayoutAddress(fl validator.FieldLevel) bool {
	return domain.ValidPayoutAddress(fl.Field().String())
}

// ValidReference reports whether s looks like an issued 8-character
// payment or deal reference. Used to reject malformed path parameters
// before they reach storage.
func ValidReference(s string) bool {
	return referenceRe.MatchString(s)
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
