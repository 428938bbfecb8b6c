package service

import (
	"testing"

	"github.com/spec-kit/warranty-portal/internal/auth"
	"github.com/spec-kit/warranty-portal/internal/domain"
	"github.com/spec-kit/warranty-portal/internal/workflow"
	apperrors "github.com/spec-kit/warranty-portal/pkg/util/errorutil"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t, workflow.Policy{})

	session, err := f.profiles.Register(f.ctx, RegisterInput{
		FullName: " Elisa Prado ",
		Email:    "Elisa@Example.com",
		Password: "s3cret-pass",
		Phone:    "+55 11 99999-0000",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if session.Profile.Role != domain.RoleCustomer || session.Profile.Email != "elisa@example.com" || session.Profile.FullName != "Elisa Prado" {
		t.Fatalf("unexpected profile %+v", session.Profile)
	}
	claims, err := f.profiles.TokenManager().ParseToken(session.Token)
	if err != nil || claims.ProfileID != session.Profile.ID {
		t.Fatalf("token should name the profile: %v", err)
	}

	_, err = f.profiles.Register(f.ctx, RegisterInput{FullName: "Elisa Two", Email: "elisa@example.com", Password: "another-pass"})
	requireKind(t, err, apperrors.CodeConflict)

	_, err = f.profiles.Register(f.ctx, RegisterInput{FullName: "No", Email: "not-an-email", Password: "short"})
	requireKind(t, err, apperrors.CodeValidation)
	details := apperrors.ToDomainError(err).Details
	for _, field := range []string{"full_name", "email", "password"} {
		if _, ok := details[field]; !ok {
			t.Errorf("expected %s in details %v", field, details)
		}
	}

	if _, err := f.profiles.Login(f.ctx, "ELISA@example.com ", "s3cret-pass"); err != nil {
		t.Fatalf("login: %v", err)
	}
	_, err = f.profiles.Login(f.ctx, "elisa@example.com", "wrong")
	requireKind(t, err, apperrors.CodeUnauthorized)
	_, err = f.profiles.Login(f.ctx, "nobody@example.com", "whatever")
	requireKind(t, err, apperrors.CodeUnauthorized)
}

func TestBootstrapStaffRegistration(t *testing.T) {
	f := newFixture(t, workflow.Policy{})
	profiles := NewProfileService(ProfileDependencies{
		Store:          f.store,
		Tokens:         auth.NewTokenManager("test-secret", 15),
		BcryptCost:     4,
		BootstrapStaff: []string{" Lead@Example.com "},
	})
	session, err := profiles.Register(f.ctx, RegisterInput{FullName: "Team Lead", Email: "lead@example.com", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if session.Profile.Role != domain.RoleStaff {
		t.Fatalf("bootstrap email should register as staff")
	}
}

func TestProfileAdministration(t *testing.T) {
	f := newFixture(t, workflow.Policy{})

	_, err := f.profiles.GetProfile(f.ctx, f.customer, f.other.ID)
	requireKind(t, err, apperrors.CodeForbidden)
	if _, err := f.profiles.GetProfile(f.ctx, f.staff, f.other.ID); err != nil {
		t.Fatalf("staff read: %v", err)
	}

	updated, err := f.profiles.UpdateProfile(f.ctx, f.customer, f.customer.ID, ProfileUpdate{Phone: strPtr(" 555-0100 ")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Phone != "555-0100" || updated.FullName != "Ana Souza" {
		t.Fatalf("unexpected profile %+v", updated)
	}
	_, err = f.profiles.UpdateProfile(f.ctx, f.customer, f.customer.ID, ProfileUpdate{FullName: strPtr("A")})
	requireKind(t, err, apperrors.CodeValidation)

	_, err = f.profiles.SetProfileRole(f.ctx, f.customer, f.other.ID, domain.RoleStaff)
	requireKind(t, err, apperrors.CodeForbidden)
	_, err = f.profiles.SetProfileRole(f.ctx, f.staff, f.other.ID, domain.Role("admin"))
	requireKind(t, err, apperrors.CodeValidation)

	promoted, err := f.profiles.SetProfileRole(f.ctx, f.staff, f.other.ID, domain.RoleStaff)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted.Role != domain.RoleStaff {
		t.Fatalf("role not changed")
	}

	customers, err := f.profiles.ListCustomers(f.ctx, f.staff)
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}
	if len(customers) != 1 || customers[0].ID != f.customer.ID {
		t.Fatalf("expected only the remaining customer, got %+v", customers)
	}
	_, err = f.profiles.ListCustomers(f.ctx, f.customer)
	requireKind(t, err, apperrors.CodeForbidden)
}
