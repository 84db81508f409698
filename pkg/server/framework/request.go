package framework

import (
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/validator.v9"
	entranslations "gopkg.in/go-playground/validator.v9/translations/en"
)

// validate holds the settings and caches for validating request payloads.
var validate *validator.Validate

// translator is a cache of locale and translation information.
var translator *ut.UniversalTranslator

func init() {
	// Instantiate validator.
	validate = validator.New()

	// Instantiate the english locale for the validator lib.
	enLocale := en.New()

	// Create a translator using english as the fallback locale (first arg).
	// Provide one or more arguments for additional supported locale.
	translator = ut.New(enLocale, enLocale)

	// Register english error messages for validation errors.
	lang, _ := translator.GetTranslator("en")
	_ = entranslations.RegisterDefaultTranslations(validate, lang)

	// Use JSON tag names for errors instead of Go struct field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})
}

// Decode reads an HTTP request body looking for a JSON document.
// The body is decoded into the value provided. Unknown fields are rejected.
//
// The provided value is checked for validation tags if it's a struct.
func Decode(r *http.Request, val any) error {
	return decode(r, val, true)
}

// DecodeAllowUnknown is Decode for payloads that may carry fields the value does not model.
func DecodeAllowUnknown(r *http.Request, val any) error {
	return decode(r, val, false)
}

func decode(r *http.Request, val any, strict bool) error {
	if r.Body == nil {
		return NewRequestErrorMsg("request body is empty", http.StatusBadRequest)
	}
	decoder := json.NewDecoder(r.Body)
	if strict {
		decoder.DisallowUnknownFields()
	}

	if err := decoder.Decode(val); err != nil {
		if errors.Is(err, io.EOF) {
			return NewRequestErrorMsg("request body is empty", http.StatusBadRequest)
		}
		return NewRequestError(err, http.StatusBadRequest)
	}

	if reflect.Indirect(reflect.ValueOf(val)).Kind() != reflect.Struct {
		return nil
	}
	if err := validate.Struct(val); err != nil {
		var vErrors validator.ValidationErrors
		if !errors.As(err, &vErrors) {
			return err
		}

		// lang is the language used for error messages.
		//* use value of "Accept-Language" header when more than one
		//* language is supported
		lang, _ := translator.GetTranslator("en")

		var fieldErrors []FieldError
		for _, vError := range vErrors {
			fieldError := FieldError{
				Field: vError.Field(),
				Error: vError.Translate(lang),
			}

			fieldErrors = append(fieldErrors, fieldError)
		}

		return &SafeError{
			Err:        errors.New("field validation error"),
			StatusCode: http.StatusBadRequest,
			Fields:     fieldErrors,
		}
	}

	return nil
}

// GetParam is a utility to get a path parameter from the request, nil if not found
func GetParam(c *gin.Context, param string) *string {
	v := c.Param(param)
	if v == "" {
		return nil
	}
	return &v
}

// GetQueryValue is a utility to get a parameter value from the query string, nil if not found
func GetQueryValue(c *gin.Context, param string) *string {
	v := c.Query(param)
	if v == "" {
		return nil
	}
	return &v
}
