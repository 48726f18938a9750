package models

import "time"

type OrganisationType string

const (
	OrganisationTypeEntreprise  OrganisationType = "entreprise"
	OrganisationTypeEcole       OrganisationType = "ecole"
	OrganisationTypeAssociation OrganisationType = "association"
	OrganisationTypeAutre       OrganisationType = "autre"
)

func (t OrganisationType) Valid() bool {
	switch t {
	case OrganisationTypeEntreprise, OrganisationTypeEcole, OrganisationTypeAssociation, OrganisationTypeAutre:
		return true
	}
	return false
}

type Organisation struct {
	ID           string
	Name         string
	Type         OrganisationType
	CountryCode  string
	CreationDate time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrganisationStats counts members of an organisation by role.
type OrganisationStats struct {
	TotalUsers int
	Admins     int
	Users      int
}
