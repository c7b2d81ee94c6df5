// Package seed loads initial users from a YAML file.
package seed

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/repository"
	"github.com/yukikurage/taskboard/internal/services"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed default.yaml
var defaultSeed []byte

type File struct {
	Users []User `yaml:"users"`
}

type User struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	Role     string `yaml:"role,omitempty"`
}

// Parse decodes a seed file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &f, nil
}

// Load reads the seed file at path, or the built-in seed when path is
// empty.
func Load(path string) (*File, error) {
	if path == "" {
		return Parse(defaultSeed)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Seeder creates the users of a seed file.
type Seeder struct {
	auth     *services.AuthService
	userRepo repository.UserRepository
	roleRepo repository.RoleRepository
}

func NewSeeder(auth *services.AuthService, userRepo repository.UserRepository, roleRepo repository.RoleRepository) *Seeder {
	return &Seeder{auth: auth, userRepo: userRepo, roleRepo: roleRepo}
}

// Apply signs up every user of f whose email is not registered yet and
// gives it its role. It returns the number of users created.
func (s *Seeder) Apply(f *File) (int, error) {
	created := 0
	for _, u := range f.Users {
		if _, err := s.userRepo.FindByEmail(u.Email); err == nil {
			zap.L().Debug("seed user exists", zap.String("email", u.Email))
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, fmt.Errorf("failed to look up %s: %w", u.Email, err)
		}

		user, err := s.auth.Signup(nil, services.SignupInput{
			Email:    u.Email,
			Name:     u.Name,
			Password: u.Password,
		})
		if err != nil {
			return created, fmt.Errorf("failed to seed %s: %w", u.Email, err)
		}

		if u.Role != "" {
			if !models.RoleName(u.Role).Valid() {
				return created, fmt.Errorf("unknown role %q for %s", u.Role, u.Email)
			}
			role, err := s.roleRepo.FindByName(u.Role)
			if err != nil {
				return created, fmt.Errorf("failed to find role %s: %w", u.Role, err)
			}
			user.RoleID = &role.ID
			if err := s.userRepo.Update(user); err != nil {
				return created, fmt.Errorf("failed to assign role to %s: %w", u.Email, err)
			}
		}

		created++
		zap.L().Info("Seeded user", zap.String("email", user.Email), zap.String("role", u.Role))
	}
	return created, nil
}
