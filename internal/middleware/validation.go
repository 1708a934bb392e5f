package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/jobboard-api/internal/model"
	apperrors "github.com/jwalitptl/jobboard-api/pkg/errors"
)

var validationMessages = map[string]string{
	"required":          "field is required",
	"max":               "value is too long",
	"min":               "value is too short",
	"uuid":              "must be a uuid",
	"app_status":        "must be one of PENDING, REVIEWING, APPROVED, REJECTED",
	"notification_kind": "must be one of job, resume, company, system",
}

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators installs the domain tags on gin's binding engine and
// makes validation errors report json field names. Safe to call repeatedly.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("binding engine is not go-playground/validator")
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})

		if err := v.RegisterValidation("app_status", validateApplicationStatus); err != nil {
			registerErr = err
			return
		}
		registerErr = v.RegisterValidation("notification_kind", validateNotificationKind)
	})
	return registerErr
}

func validateApplicationStatus(fl validator.FieldLevel) bool {
	_, err := model.ParseApplicationStatus(fl.Field().String())
	return err == nil
}

func validateNotificationKind(fl validator.FieldLevel) bool {
	return model.NotificationKind(fl.Field().String()).Valid()
}

// BindError turns a ShouldBind failure into a 400 naming each bad field.
func BindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.BadRequest("invalid request body", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msg, ok := validationMessages[e.Tag()]
		if !ok {
			msg = fmt.Sprintf("failed %s validation", e.Tag())
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), msg))
	}
	return apperrors.BadRequest(strings.Join(msgs, "; "), err)
}
