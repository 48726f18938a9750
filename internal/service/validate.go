package service

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/models"
)

const (
	MinPasswordLength = 8

	minOrganisationName = 3
	maxOrganisationName = 255
	maxCountryCode      = 3
)

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail accepts a bare address, without display name.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errs.Invalid("email", "email must be a valid address")
	}
	return nil
}

func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return errs.Invalid("password", "password must be at least 8 characters")
	}
	return nil
}

func validateProfile(nom, prenom string, age int) error {
	if strings.TrimSpace(nom) == "" {
		return errs.Invalid("nom", "nom is required")
	}
	if strings.TrimSpace(prenom) == "" {
		return errs.Invalid("prenom", "prenom is required")
	}
	if age < 0 {
		return errs.Invalid("age", "age must not be negative")
	}
	return nil
}

func languageOrDefault(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return models.DefaultLanguageCode
	}
	return code
}

// requireOrganisation enforces the membership invariant of non-superadmins.
func requireOrganisation(role models.UserRole, organisationID *string) error {
	if role == models.UserRoleSuperAdmin {
		return nil
	}
	if organisationID == nil || strings.TrimSpace(*organisationID) == "" {
		return errs.Invalid("organisation_id", "organisation_id is required for this role")
	}
	return nil
}

func validateOrganisationName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < minOrganisationName || n > maxOrganisationName {
		return errs.Invalid("nom", "nom must be between 3 and 255 characters")
	}
	return nil
}

func validateCountryCode(code string) error {
	n := utf8.RuneCountInString(code)
	if n < 1 || n > maxCountryCode {
		return errs.Invalid("code_pays", "code_pays must be between 1 and 3 characters")
	}
	return nil
}
