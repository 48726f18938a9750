// Package memory is an in-process implementation of the service persistence
// ports, used by tests and local runs without Postgres.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/ids"
	"github.com/bytesecuritas/sensi-back/internal/models"
	"github.com/bytesecuritas/sensi-back/internal/service"
)

type Store struct {
	mu sync.RWMutex

	users         map[string]models.User
	organisations map[string]models.Organisation
	paths         map[string]models.LearningPath
	links         map[linkKey]models.OrganisationLearningPath
	progress      map[string][]models.PathProgress
	certificates  map[string]int

	now func() time.Time
}

type linkKey struct {
	organisationID string
	learningPathID string
}

var (
	_ service.Directory     = (*Store)(nil)
	_ service.LearningStore = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		users:         make(map[string]models.User),
		organisations: make(map[string]models.Organisation),
		paths:         make(map[string]models.LearningPath),
		links:         make(map[linkKey]models.OrganisationLearningPath),
		progress:      make(map[string][]models.PathProgress),
		certificates:  make(map[string]int),
		now:           time.Now,
	}
}

func (s *Store) GetUser(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, errs.NotFound("user", id)
	}
	return user, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, errs.NotFound("user", email)
}

func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return filterUsers(s.users, func(models.User) bool { return true }), nil
}

func (s *Store) ListUsersByRole(_ context.Context, role models.UserRole) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return filterUsers(s.users, func(u models.User) bool { return u.Role == role }), nil
}

func (s *Store) ListMembers(_ context.Context, organisationID string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return filterUsers(s.users, func(u models.User) bool { return u.InOrganisation(organisationID) }), nil
}

func (s *Store) GetOrganisation(_ context.Context, id string) (models.Organisation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.organisations[id]
	if !ok {
		return models.Organisation{}, errs.NotFound("organisation", id)
	}
	return org, nil
}

func (s *Store) ListOrganisations(_ context.Context) ([]models.Organisation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.Organisation, 0, len(s.organisations))
	for _, org := range s.organisations {
		items = append(items, org)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (s *Store) MemberCounts(_ context.Context, organisationID string) (models.OrganisationStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.organisations[organisationID]; !ok {
		return models.OrganisationStats{}, errs.NotFound("organisation", organisationID)
	}
	return countMembers(s.users, organisationID), nil
}

// InTx runs fn against a private copy of the directory and publishes
// the copy only when fn succeeds. The write lock is held for the whole call.
func (s *Store) InTx(ctx context.Context, fn func(tx service.DirectoryTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &directoryTx{
		users:         maps.Clone(s.users),
		organisations: maps.Clone(s.organisations),
		links:         maps.Clone(s.links),
		now:           s.now,
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.users = tx.users
	s.organisations = tx.organisations
	s.links = tx.links
	return nil
}

type directoryTx struct {
	users         map[string]models.User
	organisations map[string]models.Organisation
	links         map[linkKey]models.OrganisationLearningPath
	now           func() time.Time
}

func (t *directoryTx) LockOrganisation(_ context.Context, id string) (models.Organisation, error) {
	org, ok := t.organisations[id]
	if !ok {
		return models.Organisation{}, errs.NotFound("organisation", id)
	}
	return org, nil
}

func (t *directoryTx) LockUser(_ context.Context, id string) (models.User, error) {
	user, ok := t.users[id]
	if !ok {
		return models.User{}, errs.NotFound("user", id)
	}
	return user, nil
}

func (t *directoryTx) MemberCounts(_ context.Context, organisationID string) (models.OrganisationStats, error) {
	return countMembers(t.users, organisationID), nil
}

func (t *directoryTx) CreateUser(_ context.Context, user models.User) error {
	if t.emailTaken(user.Email, "") {
		return errs.Conflict("email already registered")
	}
	if user.OrganisationID != nil {
		if _, ok := t.organisations[*user.OrganisationID]; !ok {
			return errs.Invalid("organisation_id", "organisation does not exist")
		}
	}
	now := t.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	t.users[user.ID] = user
	return nil
}

func (t *directoryTx) UpdateUser(_ context.Context, user models.User) error {
	current, ok := t.users[user.ID]
	if !ok {
		return errs.NotFound("user", user.ID)
	}
	if t.emailTaken(user.Email, user.ID) {
		return errs.Conflict("email already registered")
	}
	user.PasswordHash = current.PasswordHash
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = t.now()
	t.users[user.ID] = user
	return nil
}

func (t *directoryTx) UpdatePassword(_ context.Context, id string, hash []byte) error {
	user, ok := t.users[id]
	if !ok {
		return errs.NotFound("user", id)
	}
	user.PasswordHash = append([]byte(nil), hash...)
	user.UpdatedAt = t.now()
	t.users[id] = user
	return nil
}

func (t *directoryTx) DeleteUser(_ context.Context, id string) error {
	if _, ok := t.users[id]; !ok {
		return errs.NotFound("user", id)
	}
	delete(t.users, id)
	return nil
}

func (t *directoryTx) CreateOrganisation(_ context.Context, org models.Organisation) error {
	if t.nameTaken(org.Name, "") {
		return errs.Conflict("organisation name already exists")
	}
	now := t.now()
	org.CreatedAt = now
	org.UpdatedAt = now
	t.organisations[org.ID] = org
	return nil
}

func (t *directoryTx) UpdateOrganisation(_ context.Context, org models.Organisation) error {
	current, ok := t.organisations[org.ID]
	if !ok {
		return errs.NotFound("organisation", org.ID)
	}
	if t.nameTaken(org.Name, org.ID) {
		return errs.Conflict("organisation name already exists")
	}
	org.CreatedAt = current.CreatedAt
	org.UpdatedAt = t.now()
	t.organisations[org.ID] = org
	return nil
}

func (t *directoryTx) DeleteOrganisation(_ context.Context, id string) error {
	if _, ok := t.organisations[id]; !ok {
		return errs.NotFound("organisation", id)
	}
	for _, user := range t.users {
		if user.InOrganisation(id) {
			return errs.Invariant("organisation still has members")
		}
	}
	for key := range t.links {
		if key.organisationID == id {
			delete(t.links, key)
		}
	}
	delete(t.organisations, id)
	return nil
}

func (t *directoryTx) emailTaken(email, exceptID string) bool {
	for id, user := range t.users {
		if id != exceptID && user.Email == email {
			return true
		}
	}
	return false
}

func (t *directoryTx) nameTaken(name, exceptID string) bool {
	for id, org := range t.organisations {
		if id != exceptID && org.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) GetLearningPath(_ context.Context, id string) (models.LearningPath, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, ok := s.paths[id]
	if !ok {
		return models.LearningPath{}, errs.NotFound("learning_path", id)
	}
	return path, nil
}

func (s *Store) AddAssociation(_ context.Context, link models.OrganisationLearningPath) (models.OrganisationLearningPath, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.organisations[link.OrganisationID]; !ok {
		return models.OrganisationLearningPath{}, errs.NotFound("organisation", link.OrganisationID)
	}
	if _, ok := s.paths[link.LearningPathID]; !ok {
		return models.OrganisationLearningPath{}, errs.NotFound("learning_path", link.LearningPathID)
	}

	key := linkKey{link.OrganisationID, link.LearningPathID}
	if existing, ok := s.links[key]; ok {
		if existing.Active {
			return models.OrganisationLearningPath{}, errs.Conflict("learning path already associated with organisation")
		}
		link.ID = existing.ID
	}
	if link.ID == "" {
		link.ID = ids.New()
	}
	link.Active = true
	link.AddedAt = s.now()
	s.links[key] = link
	return link, nil
}

func (s *Store) RetractAssociation(_ context.Context, organisationID, learningPathID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := linkKey{organisationID, learningPathID}
	link, ok := s.links[key]
	if !ok || !link.Active {
		return errs.NotFound("association", organisationID+"/"+learningPathID)
	}
	link.Active = false
	s.links[key] = link
	return nil
}

func (s *Store) ListActivePaths(_ context.Context, organisationID string) ([]models.LearningPath, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.LearningPath, 0)
	for key, link := range s.links {
		if key.organisationID != organisationID || !link.Active {
			continue
		}
		if path, ok := s.paths[key.learningPathID]; ok {
			items = append(items, path)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Title < items[j].Title })
	return items, nil
}

func (s *Store) HasActiveAssociation(_ context.Context, organisationID, learningPathID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[linkKey{organisationID, learningPathID}]
	return ok && link.Active, nil
}

func (s *Store) UserProgress(_ context.Context, userID string) ([]models.PathProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.PathProgress(nil), s.progress[userID]...), nil
}

func (s *Store) CountCertifications(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.certificates[userID], nil
}

// PutLearningPath seeds the catalogue. Content authoring lives outside this
// service.
func (s *Store) PutLearningPath(path models.LearningPath) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if path.ID == "" {
		path.ID = ids.New()
	}
	s.paths[path.ID] = path
}

func (s *Store) RecordProgress(userID string, progress models.PathProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress[userID] = append(s.progress[userID], progress)
}

func (s *Store) AwardCertificate(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.certificates[userID]++
}

func filterUsers(users map[string]models.User, keep func(models.User) bool) []models.User {
	items := make([]models.User, 0)
	for _, user := range users {
		if keep(user) {
			items = append(items, user)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Email < items[j].Email })
	return items
}

func countMembers(users map[string]models.User, organisationID string) models.OrganisationStats {
	var stats models.OrganisationStats
	for _, user := range users {
		if !user.InOrganisation(organisationID) {
			continue
		}
		stats.TotalUsers++
		switch user.Role {
		case models.UserRoleAdmin:
			stats.Admins++
		case models.UserRoleUser:
			stats.Users++
		}
	}
	return stats
}
