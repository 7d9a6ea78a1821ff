package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aussiebroadwan/sessiongate/internal/domain"
	"github.com/aussiebroadwan/sessiongate/internal/store"
	"github.com/aussiebroadwan/sessiongate/pkg/authz"
	"github.com/aussiebroadwan/sessiongate/pkg/cryptox"
	"github.com/aussiebroadwan/sessiongate/pkg/idx"
	"github.com/aussiebroadwan/sessiongate/pkg/slogx"
)

var ErrSeedInvalid = errors.New("invalid seed data")

// Seed describes the users, grants and departments of a development backend.
type Seed struct {
	Users       []SeedUser   `yaml:"users"`
	Departments []Department `yaml:"departments"`
}

type SeedUser struct {
	Username      string `yaml:"username"`
	PreferredName string `yaml:"preferred_name"`
	DepartmentID  int64  `yaml:"department_id"`

	// Exactly one of Password and PasswordHash is set.
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`

	Roles []SeedGrant `yaml:"roles"`
}

type SeedGrant struct {
	Role    string `yaml:"role"`
	Scope   string `yaml:"scope"`
	ScopeID int64  `yaml:"scope_id"`
}

type Department struct {
	ID       int64     `yaml:"id" json:"id"`
	Name     string    `yaml:"name" json:"name"`
	Projects []Project `yaml:"projects" json:"projects"`
}

type Project struct {
	ID   int64  `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// DefaultSeed is used when no seed file is configured. Every user's
// password is "password".
func DefaultSeed() Seed {
	return Seed{
		Users: []SeedUser{
			{
				Username:      "admin",
				PreferredName: "Admin",
				Password:      "password",
				Roles:         []SeedGrant{{Role: "Global Manager", Scope: "GLOBAL"}},
			},
			{
				Username:      "dana",
				PreferredName: "Dana",
				DepartmentID:  1,
				Password:      "password",
				Roles:         []SeedGrant{{Role: "Department Manager", Scope: "DEPARTMENT", ScopeID: 1}},
			},
			{
				Username:      "eli",
				PreferredName: "Eli",
				DepartmentID:  1,
				Password:      "password",
				Roles:         []SeedGrant{{Role: "Contributor", Scope: "PROJECT", ScopeID: 11}},
			},
		},
		Departments: []Department{
			{ID: 1, Name: "Engineering", Projects: []Project{{ID: 11, Name: "Platform"}, {ID: 12, Name: "Mobile"}}},
			{ID: 2, Name: "Research", Projects: []Project{{ID: 21, Name: "Field Trials"}}},
		},
	}
}

// LoadSeed reads a YAML seed file. An empty path yields DefaultSeed.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}

	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("parse seed file: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Seed{}, err
	}
	return s, nil
}

func (s Seed) Validate() error {
	var errs []string
	seen := map[string]bool{}
	for i, u := range s.Users {
		name := strings.ToLower(strings.TrimSpace(u.Username))
		switch {
		case name == "":
			errs = append(errs, fmt.Sprintf("users[%d]: username is required", i))
		case seen[name]:
			errs = append(errs, fmt.Sprintf("users[%d]: duplicate username %q", i, u.Username))
		}
		seen[name] = true

		if (u.Password == "") == (u.PasswordHash == "") {
			errs = append(errs, fmt.Sprintf("users[%d]: exactly one of password and password_hash is required", i))
		}
		for j, g := range u.Roles {
			if strings.TrimSpace(g.Role) == "" {
				errs = append(errs, fmt.Sprintf("users[%d].roles[%d]: role is required", i, j))
			}
			if !authz.ParseScope(g.Scope).Valid() {
				errs = append(errs, fmt.Sprintf("users[%d].roles[%d]: unknown scope %q", i, j, g.Scope))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrSeedInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// Apply writes the seed users and grants in one transaction. A store that
// already holds users is left alone so restarts keep their data.
func (s Seed) Apply(ctx context.Context, st store.Store) error {
	l := slogx.FromContext(ctx)

	empty, err := st.Users().IsEmpty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		l.Debug("store already seeded")
		return nil
	}

	now := time.Now().UTC()
	err = st.WithTx(ctx, func(tx store.Tx) error {
		for _, su := range s.Users {
			hash := su.PasswordHash
			if hash == "" {
				if hash, err = cryptox.HashPassword(su.Password); err != nil {
					return err
				}
			}

			u := domain.User{
				ID:            idx.New().String(),
				Username:      strings.TrimSpace(su.Username),
				PreferredName: su.PreferredName,
				PasswordHash:  hash,
				DepartmentID:  su.DepartmentID,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := tx.Users().CreateUser(ctx, u); err != nil {
				return fmt.Errorf("create user %q: %w", u.Username, err)
			}

			for _, g := range su.Roles {
				role, err := tx.Roles().EnsureRole(ctx, strings.TrimSpace(g.Role), "")
				if err != nil {
					return err
				}
				if _, err := tx.Roles().GrantRole(ctx, u.ID, authz.RoleAssignment{
					Role:      role,
					Scope:     authz.ParseScope(g.Scope),
					ScopeID:   g.ScopeID,
					GrantedAt: now,
				}); err != nil {
					return fmt.Errorf("grant %q to %q: %w", g.Role, u.Username, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.Info("seeded development users", slog.Int("users", len(s.Users)))
	return nil
}

// Directory serves the seeded departments. It is read-only after creation.
type Directory struct {
	byID map[int64]Department
}

func NewDirectory(departments []Department) *Directory {
	d := &Directory{byID: make(map[int64]Department, len(departments))}
	for _, dep := range departments {
		if dep.Projects == nil {
			dep.Projects = []Project{}
		}
		d.byID[dep.ID] = dep
	}
	return d
}

func (d *Directory) Department(id int64) (Department, bool) {
	dep, ok := d.byID[id]
	return dep, ok
}
