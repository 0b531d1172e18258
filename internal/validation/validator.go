// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

// Package validation validates decoded request bodies with
// go-playground/validator and turns failures into a list of readable
// messages for the 400 response.
//
// Field names in messages are the JSON names, and nested fields keep their
// path ("items[0].quantity is required").
//
//	var req service.RegisterInput
//	if verr := validation.DecodeJSON(r, &req); verr != nil {
//	    api.ValidationFailed(w, r, verr)
//	    return
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/merkato/internal/models"
	"github.com/tomtom215/merkato/internal/orderflow"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// etPhonePattern accepts +2519XXXXXXXX, +2517XXXXXXXX, 2519..., 09... and 07...
var etPhonePattern = regexp.MustCompile(`^(\+?251|0)[79]\d{8}$`)

// GetValidator returns the shared validator with Merkato's custom tags:
//
//	et_phone        Ethiopian mobile number
//	role            any account role
//	signup_role     role a user may pick at registration
//	category        product category
//	region          Ethiopian region
//	payment_method  supported payment method
//	order_status    known order status
//	objectid        24-hex MongoDB ObjectID
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})

		mustRegister(v, "et_phone", func(fl validator.FieldLevel) bool {
			return IsEthiopianPhone(fl.Field().String())
		})
		mustRegister(v, "role", func(fl validator.FieldLevel) bool {
			return models.Role(fl.Field().String()).Valid()
		})
		mustRegister(v, "signup_role", func(fl validator.FieldLevel) bool {
			return models.Role(fl.Field().String()).SelfRegistrable()
		})
		mustRegister(v, "category", func(fl validator.FieldLevel) bool {
			return models.Category(fl.Field().String()).Valid()
		})
		mustRegister(v, "region", func(fl validator.FieldLevel) bool {
			return models.Region(fl.Field().String()).Valid()
		})
		mustRegister(v, "payment_method", func(fl validator.FieldLevel) bool {
			return models.PaymentMethod(fl.Field().String()).Valid()
		})
		mustRegister(v, "order_status", func(fl validator.FieldLevel) bool {
			return orderflow.Valid(models.OrderStatus(fl.Field().String()))
		})
		mustRegister(v, "objectid", func(fl validator.FieldLevel) bool {
			return primitive.IsValidObjectID(fl.Field().String())
		})

		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// IsEthiopianPhone reports whether s is an Ethiopian mobile number.
// Spaces and dashes are ignored.
func IsEthiopianPhone(s string) bool {
	s = strings.NewReplacer(" ", "", "-", "").Replace(s)
	return etPhonePattern.MatchString(s)
}

// NormalizePhone converts an accepted phone number to +251XXXXXXXXX.
// Invalid input is returned unchanged.
func NormalizePhone(s string) string {
	clean := strings.NewReplacer(" ", "", "-", "").Replace(s)
	if !etPhonePattern.MatchString(clean) {
		return s
	}
	return "+251" + clean[len(clean)-9:]
}

// FieldError is one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// RequestValidationError collects every failed rule of a request.
type RequestValidationError struct {
	fields []FieldError
}

// NewRequestError builds a validation error from plain messages. Services
// use it for checks that cannot be expressed as struct tags.
func NewRequestError(field, message string) *RequestValidationError {
	return &RequestValidationError{fields: []FieldError{{Field: field, Tag: "custom", Message: message}}}
}

// Add appends another failure and returns e.
func (e *RequestValidationError) Add(field, message string) *RequestValidationError {
	e.fields = append(e.fields, FieldError{Field: field, Tag: "custom", Message: message})
	return e
}

// Fields returns the individual failures.
func (e *RequestValidationError) Fields() []FieldError {
	return e.fields
}

// Messages returns one human-readable message per failure.
func (e *RequestValidationError) Messages() []string {
	out := make([]string, len(e.fields))
	for i, f := range e.fields {
		out[i] = f.Message
	}
	return out
}

func (e *RequestValidationError) Error() string {
	if len(e.fields) == 0 {
		return "validation failed"
	}
	return strings.Join(e.Messages(), "; ")
}

// ValidateStruct validates s and returns nil or the collected failures.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &RequestValidationError{fields: []FieldError{{Field: "body", Tag: "invalid", Message: err.Error()}}}
	}

	fields := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		name := fieldPath(fe)
		fields[i] = FieldError{
			Field:   name,
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translateError(fe, name),
		}
	}
	return &RequestValidationError{fields: fields}
}

// fieldPath drops the root struct name from the namespace:
// "PlaceOrderInput.items[0].quantity" becomes "items[0].quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

var simpleMessages = map[string]string{
	"required":       "%s is required",
	"email":          "%s must be a valid email address",
	"url":            "%s must be a valid URL",
	"et_phone":       "%s must be a valid Ethiopian phone number (e.g. +251911234567)",
	"role":           "%s must be a valid role",
	"signup_role":    "%s must be one of: customer, seller, delivery_agent",
	"category":       "%s must be a valid product category",
	"region":         "%s must be a valid Ethiopian region",
	"payment_method": "%s must be one of: cash_on_delivery, telebirr, cbe_birr, bank_transfer",
	"order_status":   "%s must be a valid order status",
	"objectid":       "%s must be a valid id",
	"alphanum":       "%s must contain only letters and digits",
	"dive":           "%s contains an invalid entry",
}

var paramMessages = map[string]string{
	"oneof":   "%s must be one of: %s",
	"gte":     "%s must be greater than or equal to %s",
	"lte":     "%s must be less than or equal to %s",
	"gt":      "%s must be greater than %s",
	"lt":      "%s must be less than %s",
	"len":     "%s must have length %s",
	"eqfield": "%s must match %s",
	"nefield": "%s must be different from %s",
}

func translateError(fe validator.FieldError, field string) string {
	tag := fe.Tag()
	if tmpl, ok := simpleMessages[tag]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := paramMessages[tag]; ok {
		return fmt.Sprintf(tmpl, field, strings.ReplaceAll(fe.Param(), " ", ", "))
	}

	param := fe.Param()
	switch fe.Kind() {
	case reflect.String:
		switch tag {
		case "min":
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		case "max":
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
	case reflect.Slice, reflect.Array, reflect.Map:
		switch tag {
		case "min":
			if param == "1" {
				return fmt.Sprintf("%s must contain at least one item", field)
			}
			return fmt.Sprintf("%s must contain at least %s items", field, param)
		case "max":
			return fmt.Sprintf("%s must contain at most %s items", field, param)
		}
	default:
		switch tag {
		case "min":
			return fmt.Sprintf("%s must be at least %s", field, param)
		case "max":
			return fmt.Sprintf("%s must be at most %s", field, param)
		}
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}
