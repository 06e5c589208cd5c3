package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-desk/internal/api/dto"
	"github.com/spec-kit/repair-desk/internal/domain"
)

// TechniciansHandler serves the technician roster.
type TechniciansHandler struct{}

func NewTechniciansHandler() *TechniciansHandler {
	return &TechniciansHandler{}
}

// List GET /technicians.
func (h *TechniciansHandler) List(c *fiber.Ctx) error {
	items := make([]dto.TechnicianResponse, 0, len(domain.Technicians))
	for _, tech := range domain.Technicians {
		items = append(items, dto.TechnicianResponse{ID: tech.ID, Name: tech.Name})
	}
	return c.JSON(fiber.Map{"data": items, "product_categories": domain.ProductCategories})
}
