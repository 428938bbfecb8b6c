package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/warranty-portal/internal/auth"
	"github.com/spec-kit/warranty-portal/internal/clock"
	"github.com/spec-kit/warranty-portal/internal/domain"
	"github.com/spec-kit/warranty-portal/internal/repository"
	"github.com/spec-kit/warranty-portal/internal/validation"
	apperrors "github.com/spec-kit/warranty-portal/pkg/util/errorutil"
)

// RegisterInput is the registration payload.
type RegisterInput struct {
	FullName string `json:"full_name" validate:"required,min=3,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Document string `json:"document" validate:"max=40"`
	Phone    string `json:"phone" validate:"max=40"`
}

// ProfileUpdate carries editable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	FullName *string
	Document *string
	Phone    *string
}

// Session is the outcome of a successful register or login.
type Session struct {
	Profile   *domain.Profile
	Token     string
	ExpiresAt time.Time
}

// ProfileService coordinates registration, login and profile administration.
type ProfileService struct {
	core
	tokens       *auth.TokenManager
	bcryptCost   int
	staffByEmail map[string]struct{}
}

// ProfileDependencies bundles collaborators for the profile service.
type ProfileDependencies struct {
	Store      repository.Store
	Tokens     *auth.TokenManager
	BcryptCost int
	// BootstrapStaff lists emails that register directly as staff.
	BootstrapStaff []string
	Clock          clock.Clock
	Logger         *zap.Logger
}

// NewProfileService builds the service.
func NewProfileService(deps ProfileDependencies) *ProfileService {
	staff := make(map[string]struct{}, len(deps.BootstrapStaff))
	for _, email := range deps.BootstrapStaff {
		if email = normalizeEmail(email); email != "" {
			staff[email] = struct{}{}
		}
	}
	return &ProfileService{
		core:         newCore(deps.Store, nil, deps.Clock, deps.Logger),
		tokens:       deps.Tokens,
		bcryptCost:   deps.BcryptCost,
		staffByEmail: staff,
	}
}

// Register creates a customer profile and signs a token for it.
func (s *ProfileService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	input.FullName = strings.TrimSpace(input.FullName)
	input.Email = normalizeEmail(input.Email)
	input.Document = strings.TrimSpace(input.Document)
	input.Phone = strings.TrimSpace(input.Phone)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, apperrors.NewValidationError("invalid profile", map[string]any{"password": "must be at most 72 bytes"})
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	role := domain.RoleCustomer
	if _, ok := s.staffByEmail[input.Email]; ok {
		role = domain.RoleStaff
	}
	now := s.now(time.Time{})
	profile := &domain.Profile{
		ID:           uuid.NewString(),
		FullName:     input.FullName,
		Email:        input.Email,
		Document:     input.Document,
		Phone:        input.Phone,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Profiles().Create(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": input.Email})
		}
		return nil, mapRepoError(err, "profile", profile.ID)
	}
	s.logger.Info("profile registered", zap.String("profile_id", profile.ID), zap.String("role", string(role)))
	return s.issue(profile)
}

// Login authenticates by email and password.
func (s *ProfileService) Login(ctx context.Context, email, password string) (*Session, error) {
	profile, err := s.store.Profiles().GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, mapRepoError(err, "profile", "")
	}
	ok, err := auth.CheckPassword(profile.PasswordHash, password)
	if err != nil {
		s.logger.Warn("stored password hash unusable", zap.String("profile_id", profile.ID), zap.Error(err))
	}
	if !ok {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.issue(profile)
}

func (s *ProfileService) issue(profile *domain.Profile) (*Session, error) {
	token, exp, err := s.tokens.GenerateToken(profile.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{Profile: profile, Token: token, ExpiresAt: exp}, nil
}

// ResolveProfile loads a profile for the auth middleware.
func (s *ProfileService) ResolveProfile(ctx context.Context, id string) (*domain.Profile, error) {
	profile, err := s.store.Profiles().GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "profile", id)
	}
	return profile, nil
}

// GetProfile returns a profile. Customers may only read their own.
func (s *ProfileService) GetProfile(ctx context.Context, actor domain.Actor, id string) (*domain.Profile, error) {
	if err := s.canManage(actor, id); err != nil {
		return nil, err
	}
	return s.ResolveProfile(ctx, id)
}

// UpdateProfile edits name, document and phone of a profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, actor domain.Actor, id string, update ProfileUpdate) (*domain.Profile, error) {
	if err := s.canManage(actor, id); err != nil {
		return nil, err
	}
	var result *domain.Profile
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		profile, err := tx.Profiles().GetByID(ctx, id)
		if err != nil {
			return mapRepoError(err, "profile", id)
		}
		if update.FullName != nil {
			profile.FullName = strings.TrimSpace(*update.FullName)
		}
		if update.Document != nil {
			profile.Document = strings.TrimSpace(*update.Document)
		}
		if update.Phone != nil {
			profile.Phone = strings.TrimSpace(*update.Phone)
		}
		if err := validation.Struct(profileFields{FullName: profile.FullName, Document: profile.Document, Phone: profile.Phone}); err != nil {
			return err
		}
		profile.UpdatedAt = s.now(profile.UpdatedAt)
		if err := tx.Profiles().Update(ctx, profile); err != nil {
			return mapRepoError(err, "profile", id)
		}
		result = profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type profileFields struct {
	FullName string `json:"full_name" validate:"required,min=3,max=120"`
	Document string `json:"document" validate:"max=40"`
	Phone    string `json:"phone" validate:"max=40"`
}

// SetProfileRole changes the role of a profile. Staff only.
func (s *ProfileService) SetProfileRole(ctx context.Context, actor domain.Actor, id string, role domain.Role) (*domain.Profile, error) {
	if err := requireStaff(actor, "change roles"); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": string(role)})
	}
	var result *domain.Profile
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		profile, err := tx.Profiles().GetByID(ctx, id)
		if err != nil {
			return mapRepoError(err, "profile", id)
		}
		result = profile
		if profile.Role == role {
			return nil
		}
		profile.Role = role
		profile.UpdatedAt = s.now(profile.UpdatedAt)
		return mapRepoError(tx.Profiles().Update(ctx, profile), "profile", id)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("profile role changed",
		zap.String("profile_id", id), zap.String("role", string(role)), zap.String("by", actor.ID))
	return result, nil
}

// ListCustomers returns every customer profile. Staff only.
func (s *ProfileService) ListCustomers(ctx context.Context, actor domain.Actor) ([]domain.Profile, error) {
	if err := requireStaff(actor, "list customers"); err != nil {
		return nil, err
	}
	profiles, err := s.store.Profiles().ListByRole(ctx, domain.RoleCustomer)
	if err != nil {
		return nil, mapRepoError(err, "profile", "")
	}
	if profiles == nil {
		profiles = []domain.Profile{}
	}
	return profiles, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *ProfileService) TokenManager() *auth.TokenManager {
	return s.tokens
}

func (s *ProfileService) canManage(actor domain.Actor, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if actor.ID != id && !actor.IsStaff() {
		return apperrors.NewForbidden("profile belongs to another user")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
