package handlers

import (
	"time"

	"github.com/bytesecuritas/sensi-back/internal/models"
	"github.com/bytesecuritas/sensi-back/internal/service"
)

const dateLayout = "2006-01-02"

type userResponse struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Nom            string    `json:"nom"`
	Prenom         string    `json:"prenom"`
	Role           string    `json:"role"`
	Age            int       `json:"age"`
	LanguageCode   string    `json:"code_langue"`
	OrganisationID *string   `json:"organisation_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// newUserResponse never carries the password hash.
func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Email:          u.Email,
		Nom:            u.Nom,
		Prenom:         u.Prenom,
		Role:           string(u.Role),
		Age:            u.Age,
		LanguageCode:   u.LanguageCode,
		OrganisationID: u.OrganisationID,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func newUserResponses(users []models.User) []userResponse {
	items := make([]userResponse, 0, len(users))
	for _, u := range users {
		items = append(items, newUserResponse(u))
	}
	return items
}

type organisationResponse struct {
	ID           string    `json:"id"`
	Nom          string    `json:"nom"`
	Type         string    `json:"type"`
	CountryCode  string    `json:"code_pays"`
	CreationDate string    `json:"date_creation"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newOrganisationResponse(o models.Organisation) organisationResponse {
	return organisationResponse{
		ID:           o.ID,
		Nom:          o.Name,
		Type:         string(o.Type),
		CountryCode:  o.CountryCode,
		CreationDate: o.CreationDate.Format(dateLayout),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

type organisationStatsResponse struct {
	TotalUsers int `json:"total_users"`
	Admins     int `json:"admins"`
	Users      int `json:"users"`
}

type learningPathResponse struct {
	ID             string `json:"id"`
	Title          string `json:"titre"`
	Description    string `json:"description"`
	TargetAudience string `json:"public_cible"`
}

func newLearningPathResponses(paths []models.LearningPath) []learningPathResponse {
	items := make([]learningPathResponse, 0, len(paths))
	for _, p := range paths {
		items = append(items, learningPathResponse{
			ID:             p.ID,
			Title:          p.Title,
			Description:    p.Description,
			TargetAudience: string(p.TargetAudience),
		})
	}
	return items
}

type associationResponse struct {
	ID             string    `json:"id"`
	OrganisationID string    `json:"organisation_id"`
	LearningPathID string    `json:"parcours_id"`
	Active         bool      `json:"active"`
	AddedAt        time.Time `json:"added_at"`
}

type pathProgressResponse struct {
	LearningPathID   string `json:"parcours_id"`
	Title            string `json:"titre"`
	ModulesTotal     int    `json:"modules_total"`
	ModulesCompleted int    `json:"modules_completed"`
	TimeSpentMinutes int    `json:"time_spent_minutes"`
	Completed        bool   `json:"completed"`
}

type profileStatsResponse struct {
	Paths            []pathProgressResponse `json:"paths"`
	TotalPaths       int                    `json:"total_paths"`
	CompletedPaths   int                    `json:"completed_paths"`
	TotalTimeMinutes int                    `json:"total_time_minutes"`
	Certificates     int                    `json:"certificates"`
}

type profileResponse struct {
	User  userResponse         `json:"user"`
	Stats profileStatsResponse `json:"stats"`
}

func newProfileResponse(p service.Profile) profileResponse {
	paths := make([]pathProgressResponse, 0, len(p.Stats.Paths))
	for _, pp := range p.Stats.Paths {
		paths = append(paths, pathProgressResponse{
			LearningPathID:   pp.LearningPathID,
			Title:            pp.Title,
			ModulesTotal:     pp.ModulesTotal,
			ModulesCompleted: pp.ModulesCompleted,
			TimeSpentMinutes: pp.TimeSpentMinutes,
			Completed:        pp.Completed(),
		})
	}
	return profileResponse{
		User: newUserResponse(p.User),
		Stats: profileStatsResponse{
			Paths:            paths,
			TotalPaths:       p.Stats.TotalPaths,
			CompletedPaths:   p.Stats.CompletedPaths,
			TotalTimeMinutes: p.Stats.TotalTimeMinutes,
			Certificates:     p.Stats.Certificates,
		},
	}
}
