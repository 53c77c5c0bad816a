// Package seed provisions the first admin account and a starter set of
// government entities. Running it twice changes nothing.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	authmodels "grievance/internal/auth/models"
	"grievance/internal/auth/store/user"
	entitymodels "grievance/internal/entity/models"
	entitystore "grievance/internal/entity/store"
	id "grievance/pkg/domain"
	"grievance/pkg/platform/sentinel"
	"grievance/pkg/secrets"
)

const minAdminPassword = 8

type Admin struct {
	Email    string
	Password string
}

type Entity struct {
	Name        string
	Email       string
	Phone       string
	Description string
	Type        entitymodels.Type
}

// DefaultEntities is the starter catalogue created by the seed command.
var DefaultEntities = []Entity{
	{
		Name:        "Ministry of Health",
		Email:       "health@gov.jo",
		Phone:       "+962-6-5678901",
		Description: "Ministry responsible for public health services",
		Type:        entitymodels.TypeMinistry,
	},
	{
		Name:        "Ministry of Education",
		Email:       "education@gov.jo",
		Phone:       "+962-6-5678902",
		Description: "Ministry responsible for education",
		Type:        entitymodels.TypeMinistry,
	},
	{
		Name:        "Water Authority",
		Email:       "water@gov.jo",
		Phone:       "+962-6-5678903",
		Description: "Government authority for water management",
		Type:        entitymodels.TypeGovernmentParty,
	},
}

type Result struct {
	AdminCreated    bool
	EntitiesCreated int
	EntitiesSkipped int
}

type Seeder struct {
	users    user.Store
	entities entitystore.Store
	now      func() time.Time
}

func New(users user.Store, entities entitystore.Store) *Seeder {
	return &Seeder{users: users, entities: entities, now: time.Now}
}

// Run creates the admin when no account holds its email, then every entity
// whose email is still free. A nil admin skips the account.
func (s *Seeder) Run(ctx context.Context, admin *Admin, entities []Entity) (Result, error) {
	var res Result
	now := s.now()

	if admin != nil {
		created, err := s.ensureAdmin(ctx, *admin, now)
		if err != nil {
			return res, err
		}
		res.AdminCreated = created
	}

	for _, e := range entities {
		taken, err := s.entities.EmailTaken(ctx, e.Email, nil)
		if err != nil {
			return res, fmt.Errorf("check entity %s: %w", e.Email, err)
		}
		if taken {
			res.EntitiesSkipped++
			continue
		}
		entity, err := entitymodels.NewEntity(id.EntityID(uuid.New()), e.Name, e.Email, e.Phone, e.Description, e.Type, true, now)
		if err != nil {
			return res, fmt.Errorf("build entity %s: %w", e.Email, err)
		}
		if err := s.entities.Create(ctx, entity); err != nil {
			return res, fmt.Errorf("create entity %s: %w", e.Email, err)
		}
		res.EntitiesCreated++
	}
	return res, nil
}

func (s *Seeder) ensureAdmin(ctx context.Context, admin Admin, now time.Time) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if email == "" {
		return false, errors.New("admin email is required")
	}
	if len(admin.Password) < minAdminPassword {
		return false, fmt.Errorf("admin password must be at least %d characters", minAdminPassword)
	}

	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return false, fmt.Errorf("find admin: %w", err)
	}

	hash, err := secrets.Hash(admin.Password)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}
	u, err := authmodels.NewUser(id.UserID(uuid.New()), authmodels.NewUserParams{
		FirstName:    "Admin",
		LastName:     "Admin",
		Email:        email,
		PasswordHash: hash,
		Role:         id.RoleAdmin,
		IsActive:     true,
		Verified:     true,
	}, now)
	if err != nil {
		return false, fmt.Errorf("build admin: %w", err)
	}
	if err := s.users.Create(ctx, u); err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}
