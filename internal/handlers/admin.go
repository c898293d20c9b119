package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/storage"
)

// CustomerResetter force-cancels a customer's dialogue state.
type CustomerResetter interface {
	ResetCustomer(ctx context.Context, identity string) error
}

// SeedReloader re-applies the catalog file.
type SeedReloader func(ctx context.Context) error

// AdminHandler handles the curation and recovery endpoints.
type AdminHandler struct {
	store    storage.Store
	resetter CustomerResetter
	reload   SeedReloader
}

// NewAdminHandler creates an admin handler. reload may be nil when no seed
// file is configured.
func NewAdminHandler(store storage.Store, resetter CustomerResetter, reload SeedReloader) *AdminHandler {
	return &AdminHandler{store: store, resetter: resetter, reload: reload}
}

// ResetCustomer cancels the customer's booking dialogue and closes their
// conversation.
func (h *AdminHandler) ResetCustomer(c *fiber.Ctx) error {
	identity := strings.TrimSpace(c.Params("identity"))
	if identity == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Customer identity required",
		})
	}

	err := h.resetter.ResetCustomer(c.UserContext(), identity)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Customer not found",
		})
	}
	if err != nil {
		log.Error().Err(err).Str("customer", identity).Msg("❌ Failed to reset customer")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reset customer",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"customer": identity,
	})
}

// SetGreeting makes the FAQ the single active greeting.
func (h *AdminHandler) SetGreeting(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid FAQ id",
		})
	}

	err = h.store.SetGreeting(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "FAQ not found",
		})
	}
	if err != nil {
		log.Error().Err(err).Uint("faq_id", id).Msg("❌ Failed to set greeting")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to set greeting",
		})
	}

	log.Info().Uint("faq_id", id).Msg("👋 Greeting FAQ updated")
	return c.JSON(fiber.Map{
		"success": true,
		"faq_id":  id,
	})
}

// ListUnknownQuestions returns questions the bot could not answer.
// ?all=true includes reviewed ones.
func (h *AdminHandler) ListUnknownQuestions(c *fiber.Ctx) error {
	questions, err := h.store.ListUnknownQuestions(c.UserContext(), c.QueryBool("all", false))
	if err != nil {
		log.Error().Err(err).Msg("❌ Failed to list unknown questions")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch unknown questions",
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"questions": questions,
		"count":     len(questions),
	})
}

// MarkReviewed flags an unknown question as curated.
func (h *AdminHandler) MarkReviewed(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid question id",
		})
	}

	err = h.store.MarkUnknownQuestionReviewed(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Question not found",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update question",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

// ListReservations returns reservations, optionally filtered by ?status=a,b.
func (h *AdminHandler) ListReservations(c *fiber.Ctx) error {
	filter := storage.ReservationFilter{Limit: c.QueryInt("limit", 50)}
	if s := c.Query("status"); s != "" {
		for _, status := range strings.Split(s, ",") {
			if status = strings.TrimSpace(status); status != "" {
				filter.Statuses = append(filter.Statuses, status)
			}
		}
	}

	reservations, err := h.store.ListReservations(c.UserContext(), filter)
	if err != nil {
		log.Error().Err(err).Msg("❌ Failed to list reservations")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch reservations",
		})
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"reservations": reservations,
		"count":        len(reservations),
	})
}

// ReloadSeed re-applies the catalog file.
func (h *AdminHandler) ReloadSeed(c *fiber.Ctx) error {
	if h.reload == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "No seed file configured",
		})
	}
	if err := h.reload(c.UserContext()); err != nil {
		log.Error().Err(err).Msg("❌ Failed to reload seed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reload seed",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	n, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || n == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(n), nil
}
