// internal/factories/user.go
package factories

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagekit/internal/fixtures"
)

const (
	DefaultEmailDomain = "testuser.com"
	DefaultPassword    = "SecurePass123!"
)

// User is a generated account.
type User struct {
	Email     string    `json:"email" validate:"required,email"`
	Password  string    `json:"password" validate:"required,min=8"`
	Username  string    `json:"username" validate:"required"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Role      string    `json:"role" validate:"oneof=user admin moderator guest"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

// Record converts u to a database row.
func (u User) Record() fixtures.Record {
	return fixtures.Record{
		"email":      u.Email,
		"password":   u.Password,
		"username":   u.Username,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"role":       u.Role,
		"phone":      u.Phone,
		"created_at": u.CreatedAt.Format(time.RFC3339Nano),
		"is_active":  u.IsActive,
	}
}

// User builds a unique user. An empty role means "user" and an empty
// domain means DefaultEmailDomain.
func (f *Factory) User(role, domain string) User {
	if role == "" {
		role = "user"
	}
	if domain == "" {
		domain = DefaultEmailDomain
	}
	f.mu.Lock()
	id := f.shortID(8)
	n := f.intRange(1000, 9999)
	now := f.now()
	f.mu.Unlock()

	u := User{
		Email:     fmt.Sprintf("user_%s@%s", id, domain),
		Password:  DefaultPassword,
		Username:  fmt.Sprintf("testuser_%d", n),
		FirstName: fmt.Sprintf("FirstName_%d", n),
		LastName:  fmt.Sprintf("LastName_%d", n),
		Role:      role,
		Phone:     fmt.Sprintf("+1-555-%d", n),
		CreatedAt: now,
		IsActive:  true,
	}
	f.log.Info("Created user", zap.String("email", u.Email))
	return u
}

func (f *Factory) Admin() User { return f.User("admin", "") }
func (f *Factory) Guest() User { return f.User("guest", "") }

// Users builds count users sharing a role.
func (f *Factory) Users(count int, role string) []User {
	out := make([]User, 0, count)
	for range count {
		out = append(out, f.User(role, ""))
	}
	f.log.Info("Created batch of users", zap.Int("count", count))
	return out
}

// CustomUser builds a user with the given login; the username is the
// email's local part. Modifiers run last.
func (f *Factory) CustomUser(email, password string, mods ...func(*User)) User {
	username, _, _ := strings.Cut(email, "@")
	u := User{
		Email:     email,
		Password:  password,
		Username:  username,
		Role:      "user",
		CreatedAt: f.now(),
		IsActive:  true,
	}
	for _, mod := range mods {
		mod(&u)
	}
	f.log.Info("Created custom user", zap.String("email", email))
	return u
}
