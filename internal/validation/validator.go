// Package validation はリクエストDTOと生成結果の入力検証を提供する。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/prepwise/internal/model"
)

// ValidationError はフィールド名とエラーメッセージの対応を保持する。
// フィールド名はjsonタグの名前を使用する。
type ValidationError struct {
	Errors map[string]string
}

// Error はerrorインターフェースを実装する。フィールド名順に連結する。
func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, field := range fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, e.Errors[field]))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Validator はgo-playground/validatorのラッパー。
type Validator struct {
	validate *validator.Validate
}

// New はValidatorを生成する。
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// 採点カテゴリ名は固定セットのいずれか
	if err := v.RegisterValidation("feedback_category", func(fl validator.FieldLevel) bool {
		return slices.Contains(model.FeedbackCategories, fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("failed to register feedback_category rule: %v", err))
	}

	return &Validator{validate: v}
}

// Validate は構造体を検証する。違反がある場合は*ValidationErrorを返す。
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	fieldErrors := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		fieldErrors[fieldPath(fe)] = message(fe)
	}
	return &ValidationError{Errors: fieldErrors}
}

// fieldPath はトップレベル構造体名を除いたフィールドパスを返す（例: categoryScores[0].score）。
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map {
			return fmt.Sprintf("Must be at least %s characters long", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("Must contain exactly %s items", fe.Param())
	case "unique":
		return "Must not contain duplicates"
	case "feedback_category":
		return "Must be one of: " + strings.Join(model.FeedbackCategories, ", ")
	default:
		return fmt.Sprintf("Invalid value (failed on '%s' tag)", fe.Tag())
	}
}
