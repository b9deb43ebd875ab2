package public

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/voiceclone/internal/history"
	"github.com/ncecere/voiceclone/internal/httpserver/httputil"
)

type historyHandler struct {
	store *history.Store
}

func (h *historyHandler) list(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", history.DefaultLimit)
	entries, err := h.store.Recent(c.UserContext(), limit)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	return c.JSON(fiber.Map{
		"entries": entries,
	})
}
