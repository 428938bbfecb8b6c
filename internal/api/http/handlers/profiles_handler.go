package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/warranty-portal/internal/api/dto"
	"github.com/spec-kit/warranty-portal/internal/auth"
	"github.com/spec-kit/warranty-portal/internal/domain"
	"github.com/spec-kit/warranty-portal/internal/service"
)

// ProfilesHandler exposes registration, login and profile endpoints.
type ProfilesHandler struct {
	profiles *service.ProfileService
}

// NewProfilesHandler constructs handler.
func NewProfilesHandler(profiles *service.ProfileService) *ProfilesHandler {
	return &ProfilesHandler{profiles: profiles}
}

// Register handles POST /auth/register.
func (h *ProfilesHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	session, err := h.profiles.Register(c.UserContext(), service.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Document: req.Document,
		Phone:    req.Phone,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sessionBody(session))
}

// Login handles POST /auth/login.
func (h *ProfilesHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	session, err := h.profiles.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(sessionBody(session))
}

// Me handles GET /me.
func (h *ProfilesHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	return c.JSON(fiber.Map{"data": dto.NewProfileResponse(principal.Profile)})
}

// Get handles GET /profiles/:id.
func (h *ProfilesHandler) Get(c *fiber.Ctx) error {
	profile, err := h.profiles.GetProfile(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewProfileResponse(profile)})
}

// Update handles PATCH /profiles/:id.
func (h *ProfilesHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	profile, err := h.profiles.UpdateProfile(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), service.ProfileUpdate{
		FullName: req.FullName,
		Document: req.Document,
		Phone:    req.Phone,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewProfileResponse(profile)})
}

// SetRole handles PUT /admin/profiles/:id/role.
func (h *ProfilesHandler) SetRole(c *fiber.Ctx) error {
	var req dto.SetRoleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	profile, err := h.profiles.SetProfileRole(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewProfileResponse(profile)})
}

// Customers handles GET /admin/customers.
func (h *ProfilesHandler) Customers(c *fiber.Ctx) error {
	customers, err := h.profiles.ListCustomers(c.UserContext(), auth.ActorFromContext(c))
	if err != nil {
		return err
	}
	out := make([]dto.ProfileResponse, 0, len(customers))
	for i := range customers {
		out = append(out, dto.NewProfileResponse(&customers[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

func sessionBody(session *service.Session) fiber.Map {
	return fiber.Map{
		"data": fiber.Map{
			"profile": dto.NewProfileResponse(session.Profile),
			"auth":    dto.AuthResponse{Token: session.Token, ExpiresAt: session.ExpiresAt},
		},
	}
}

func viewerRole(c *fiber.Ctx) domain.Role {
	return auth.ActorFromContext(c).Role
}
