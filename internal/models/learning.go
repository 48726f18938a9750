package models

import "time"

type TargetAudience string

const (
	TargetAudienceDebutant      TargetAudience = "debutant"
	TargetAudienceIntermediaire TargetAudience = "intermediaire"
	TargetAudienceAvance        TargetAudience = "avance"
	TargetAudienceTous          TargetAudience = "tous"
)

type LearningPath struct {
	ID             string
	Title          string
	Description    string
	TargetAudience TargetAudience
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrganisationLearningPath links an organisation to a learning path. A
// retracted link keeps its row with Active set to false.
type OrganisationLearningPath struct {
	ID             string
	OrganisationID string
	LearningPathID string
	Active         bool
	AddedAt        time.Time
}

// PathProgress aggregates one user's module progress inside a learning path.
type PathProgress struct {
	LearningPathID   string
	Title            string
	ModulesTotal     int
	ModulesCompleted int
	TimeSpentMinutes int
}

// Completed reports whether every module of the path is finished.
func (p PathProgress) Completed() bool {
	return p.ModulesTotal > 0 && p.ModulesCompleted >= p.ModulesTotal
}
