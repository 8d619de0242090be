package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"shopmanager/internal/auth"
	"shopmanager/internal/domain"
	"shopmanager/internal/repository"

	"github.com/google/uuid"
)

type LoginResult struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Admin     domain.AdminUser `json:"admin"`
}

type SignupInput struct {
	Name           string
	Email          string
	Password       string
	InvitationCode string
}

type AdminInput struct {
	Name        string
	Email       string
	Password    string
	Role        string
	Address     string
	Permissions domain.Permissions
}

type AdminPatch struct {
	Name        *string
	Address     *string
	Role        *string
	Permissions *domain.Permissions
	Password    *string
}

// EnsureSuperAdmin creates the bootstrap superadmin when none exists.
func (s *Service) EnsureSuperAdmin(ctx context.Context, email, name, password string) error {
	count, err := s.store.CountSuperAdmins(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if email == "" {
		log.Printf("no superadmin exists and SUPERADMIN_EMAIL is not set; admin endpoints are unreachable")
		return nil
	}

	email, err = normalizeEmail(email)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin, err := s.store.CreateAdmin(ctx, domain.AdminUser{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleSuperAdmin,
		Permissions:  append(domain.Permissions(nil), domain.AllPermissions...),
		IsVerified:   true,
	})
	if err != nil {
		return fmt.Errorf("create superadmin: %w", err)
	}
	log.Printf("created superadmin %s (id %d)", admin.Email, admin.ID)
	return nil
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	invalid := fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)

	admin, err := s.store.GetAdminByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrNotFound) {
		return LoginResult{}, invalid
	}
	if err != nil {
		return LoginResult{}, err
	}
	if !auth.CheckPassword(admin.PasswordHash, password) {
		return LoginResult{}, invalid
	}
	return s.issue(admin)
}

// CurrentAdmin reloads the actor so that role and permission changes made
// after the token was issued are visible.
func (s *Service) CurrentAdmin(ctx context.Context, actor domain.Actor) (domain.AdminUser, error) {
	admin, err := s.store.GetAdmin(ctx, actor.AdminID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.AdminUser{}, fmt.Errorf("%w: account no longer exists", domain.ErrUnauthorized)
	}
	return admin, err
}

func (s *Service) CreateInvitation(ctx context.Context, actor domain.Actor, email string) (domain.Invitation, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.Invitation{}, err
	}
	if _, err := s.store.GetAdminByEmail(ctx, email); err == nil {
		return domain.Invitation{}, domain.NewConflictError(fmt.Sprintf("admin %s already exists", email))
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Invitation{}, err
	}

	inv, err := s.store.CreateInvitation(ctx, domain.Invitation{
		Email:     email,
		Code:      uuid.NewString(),
		ExpiresAt: s.now().Add(s.inviteTTL),
		CreatedBy: actor.Audit(),
	})
	if err != nil {
		return domain.Invitation{}, err
	}
	s.audit(ctx, actor, "admin", "Invite "+email, fmt.Sprintf("expires=%s", inv.ExpiresAt.Format(time.RFC3339)))
	return inv, nil
}

// Signup consumes an invitation and creates an admin with no permissions.
func (s *Service) Signup(ctx context.Context, input SignupInput) (LoginResult, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return LoginResult{}, domain.NewValidationError("name is required")
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return LoginResult{}, err
	}
	code := strings.TrimSpace(input.InvitationCode)
	if code == "" {
		return LoginResult{}, domain.NewValidationError("invitationCode is required")
	}
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return LoginResult{}, err
	}

	admin, err := s.store.SignupWithInvitation(ctx, code, domain.AdminUser{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Permissions:  domain.Permissions{},
		IsVerified:   true,
	}, s.now())
	if err != nil {
		return LoginResult{}, err
	}
	s.audit(ctx, domain.Actor{Email: admin.Email}, "admin", "Signup "+admin.Email, fmt.Sprintf("admin=%d", admin.ID))
	return s.issue(admin)
}

func (s *Service) ListAdmins(ctx context.Context) ([]domain.AdminUser, error) {
	return s.store.ListAdmins(ctx)
}

func (s *Service) GetAdmin(ctx context.Context, id int64) (domain.AdminUser, error) {
	return s.store.GetAdmin(ctx, id)
}

func (s *Service) CreateAdmin(ctx context.Context, actor domain.Actor, input AdminInput) (domain.AdminUser, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.AdminUser{}, domain.NewValidationError("name is required")
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return domain.AdminUser{}, err
	}
	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return domain.AdminUser{}, err
	}
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return domain.AdminUser{}, err
	}
	perms := input.Permissions
	if perms == nil {
		perms = domain.Permissions{}
	}

	admin, err := s.store.CreateAdmin(ctx, domain.AdminUser{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Address:      strings.TrimSpace(input.Address),
		Permissions:  perms,
		IsVerified:   true,
	})
	if err != nil {
		return domain.AdminUser{}, err
	}
	s.audit(ctx, actor, "admin", "Create admin "+admin.Email,
		fmt.Sprintf("role=%s permissions=%s", admin.Role, strings.Join(admin.Permissions.Strings(), ",")))
	return admin, nil
}

func (s *Service) UpdateAdmin(ctx context.Context, actor domain.Actor, id int64, patch AdminPatch) (domain.AdminUser, error) {
	update := repository.AdminUpdate{Permissions: patch.Permissions}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.AdminUser{}, domain.NewValidationError("name must not be empty")
		}
		update.Name = &name
	}
	if patch.Address != nil {
		address := strings.TrimSpace(*patch.Address)
		update.Address = &address
	}
	if patch.Role != nil {
		role, err := domain.ParseRole(*patch.Role)
		if err != nil {
			return domain.AdminUser{}, err
		}
		if id == actor.AdminID && role != actor.Role {
			return domain.AdminUser{}, domain.NewValidationError("you cannot change your own role")
		}
		update.Role = &role
	}
	if patch.Password != nil {
		hash, err := auth.HashPassword(*patch.Password)
		if err != nil {
			return domain.AdminUser{}, err
		}
		update.PasswordHash = &hash
	}

	admin, err := s.store.UpdateAdmin(ctx, id, update)
	if err != nil {
		return domain.AdminUser{}, err
	}
	s.audit(ctx, actor, "admin", "Update admin "+admin.Email,
		fmt.Sprintf("role=%s permissions=%s", admin.Role, strings.Join(admin.Permissions.Strings(), ",")))
	return admin, nil
}

func (s *Service) DeleteAdmin(ctx context.Context, actor domain.Actor, id int64) error {
	if id == actor.AdminID {
		return domain.NewValidationError("you cannot delete your own account")
	}
	target, err := s.store.GetAdmin(ctx, id)
	if err != nil {
		return err
	}
	if target.Role == domain.RoleSuperAdmin {
		count, err := s.store.CountSuperAdmins(ctx)
		if err != nil {
			return err
		}
		if count <= 1 {
			return domain.NewConflictError("cannot delete the last superadmin")
		}
	}
	if err := s.store.DeleteAdmin(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actor, "admin", "Delete admin "+target.Email, fmt.Sprintf("admin=%d", id))
	return nil
}

func (s *Service) issue(admin domain.AdminUser) (LoginResult, error) {
	token, expiresAt, err := s.tokens.Issue(admin)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, ExpiresAt: expiresAt, Admin: admin}, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", domain.NewValidationError(fmt.Sprintf("invalid email %q", raw))
	}
	return strings.ToLower(addr.Address), nil
}
