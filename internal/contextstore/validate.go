package contextstore

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"trade-app/internal/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Validate checks a record against the fixed schema before it is written.
func Validate(c types.SymbolContext) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", types.ErrValidation, describe(err))
	}
	return nil
}

// ValidatePosition rejects negative quantities or average costs.
func ValidatePosition(p types.Position) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", types.ErrValidation, describe(err))
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
