// Package validate checks option and query structs with go-playground
// validator and reports the first failure as an InvalidArgument error
// carrying a translated message and the offending field
package validate

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	perr "commitcrawl/internal/platform/errors"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// svc holds the validator and its english translator
type svc struct {
	v     *validator.Validate
	trans ut.Translator
}

var (
	once sync.Once
	inst *svc
)

// repoSlug matches owner/name as GitHub accepts it
var repoSlug = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})/[A-Za-z0-9._-]{1,100}$`)

func get() *svc {
	once.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// messages name the setting, not the Go field
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, key := range []string{"name", "json"} {
				tag := fld.Tag.Get(key)
				if idx := strings.Index(tag, ","); idx >= 0 {
					tag = tag[:idx]
				}
				if tag != "" && tag != "-" {
					return tag
				}
			}
			return fld.Name
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)
		_ = v.RegisterValidation("repo_slug", func(fl validator.FieldLevel) bool {
			return repoSlug.MatchString(fl.Field().String())
		})

		short(v, trans, "min", "{0} must be at least {1}")
		short(v, trans, "max", "{0} must be at most {1}")
		short(v, trans, "repo_slug", "{0} must look like owner/name")
		short(v, trans, "required_if", "{0} is required in this mode")

		inst = &svc{v: v, trans: trans}
	})
	return inst
}

// Struct validates s. The returned error has ErrorCodeInvalidArgument and
// the failing field attached.
func Struct(s any) error {
	err := get().v.Struct(s)
	if err == nil {
		return nil
	}
	field, msg := FieldAndMessage(err)
	out := perr.Newf(perr.ErrorCodeInvalidArgument, "%s", msg)
	if field != "" {
		out = perr.WithField(out, field)
	}
	return out
}

// RepoSlug reports whether s is a well formed owner/name pair
func RepoSlug(s string) bool { return repoSlug.MatchString(s) }

// FieldAndMessage returns the first failing field and its translated message
func FieldAndMessage(err error) (field, message string) {
	if err == nil {
		return "", ""
	}
	if inv, ok := err.(*validator.InvalidValidationError); ok {
		return "", inv.Error()
	}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			return fe.Field(), fe.Translate(get().trans)
		}
	}
	return "", err.Error()
}

func short(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}
