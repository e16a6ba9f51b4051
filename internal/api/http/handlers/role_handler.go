package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/orchid-auth/internal/api/dto"
	"github.com/spec-kit/orchid-auth/internal/service"
)

// RoleHandler exposes the role catalogue.
type RoleHandler struct {
	roles *service.RoleService
}

// NewRoleHandler constructs handler.
func NewRoleHandler(roles *service.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// Create handles POST /auth/roles.
func (h *RoleHandler) Create(c *fiber.Ctx) error {
	var req dto.RoleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	role, err := h.roles.Create(c.UserContext(), req.RoleName)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.RoleResponse{
		Message:  "Role created successfully",
		RoleID:   role.ID,
		RoleName: role.Name,
	})
}

// List handles GET /auth/roles.
func (h *RoleHandler) List(c *fiber.Ctx) error {
	roles, err := h.roles.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(roles)
}

// Get handles GET /auth/roles/:id.
func (h *RoleHandler) Get(c *fiber.Ctx) error {
	id, err := idParam(c, "role")
	if err != nil {
		return err
	}
	role, err := h.roles.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(role)
}

// Update handles PUT /auth/roles/:id.
func (h *RoleHandler) Update(c *fiber.Ctx) error {
	id, err := idParam(c, "role")
	if err != nil {
		return err
	}
	var req dto.RoleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	role, err := h.roles.Update(c.UserContext(), id, req.RoleName)
	if err != nil {
		return err
	}
	return c.JSON(dto.RoleResponse{Message: "Role updated successfully", RoleID: role.ID, RoleName: role.Name})
}

// Delete handles DELETE /auth/roles/:id.
func (h *RoleHandler) Delete(c *fiber.Ctx) error {
	id, err := idParam(c, "role")
	if err != nil {
		return err
	}
	if err := h.roles.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
