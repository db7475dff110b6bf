package services

import (
	"errors"

	"github.com/dmitrijs2005/taskauth/internal/common"
)

var outcomeLabels = []struct {
	err   error
	label string
}{
	{common.ErrEmailInUse, "email_in_use"},
	{common.ErrInvalidCredentials, "invalid_credentials"},
	{common.ErrAccountBanned, "account_banned"},
	{common.ErrUserNotFound, "user_not_found"},
	{common.ErrRoleNotFound, "role_not_found"},
	{common.ErrAlreadyBanned, "already_banned"},
	{common.ErrNotBanned, "not_banned"},
	{common.ErrRoleAlreadyAssigned, "role_already_assigned"},
}

// outcome maps a service result to a metrics label.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	for _, o := range outcomeLabels {
		if errors.Is(err, o.err) {
			return o.label
		}
	}
	return "error"
}
