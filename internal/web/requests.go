package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Global validator instance for reuse
var validate = validator.New()

// ValidateRequest validates the given struct using the validator package.
func ValidateRequest(v any) error {
	return validate.Struct(v)
}

// LoginForm is the admin login form.
type LoginForm struct {
	Username string `validate:"required,max=150"`
	Password string `validate:"required,max=4096"`
	Next     string
}

// ActionForm is the admin action form posted from the organization list.
type ActionForm struct {
	Action          string  `validate:"required,max=64"`
	OrganizationIDs []int64 `validate:"required,min=1,dive,gt=0"`
}

func decodeLoginForm(r *http.Request) LoginForm {
	return LoginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
		Next:     r.PostFormValue("next"),
	}
}

// decodeActionForm reads the action form. Values that are not integers are
// kept as zero so that validation rejects them.
func decodeActionForm(r *http.Request) ActionForm {
	f := ActionForm{Action: r.PostFormValue("action")}
	for _, raw := range r.PostForm["organization_ids"] {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			id = 0
		}
		f.OrganizationIDs = append(f.OrganizationIDs, id)
	}
	return f
}
