// Package val provides struct-tag validation for configuration types.
package val

import (
	"reflect"
	"strings"

	"github.com/code19m/errx"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate //nolint: gochecknoglobals // shared validator instance

func init() { //nolint: gochecknoinits // one-time validator setup
	validate = validator.New()
	validate.RegisterTagNameFunc(getTagName)
}

// Struct validates s against its validate struct tags.
func Struct(s any) error {
	err := validate.Struct(s)
	if err != nil {
		return errx.Wrap(err, errx.WithType(errx.T_Validation))
	}
	return nil
}

// getTagName reports a struct field by its yaml or json tag name when one
// is set, falling back to the Go field name.
func getTagName(fld reflect.StructField) string {
	for _, tagName := range []string{"yaml", "json"} {
		name := strings.SplitN(fld.Tag.Get(tagName), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return fld.Name
}
