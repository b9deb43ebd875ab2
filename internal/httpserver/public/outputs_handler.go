package public

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/voiceclone/internal/httpserver/httputil"
	"github.com/ncecere/voiceclone/internal/storage/blob"
	"github.com/ncecere/voiceclone/internal/synth"
)

type outputsHandler struct {
	archive *blob.Archive
}

func (h *outputsHandler) get(c *fiber.Ctx) error {
	rc, info, err := h.archive.Open(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return httputil.WriteError(c, fiber.StatusNotFound, "output not found")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to read output")
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = synth.ContentTypeWAV
	}
	c.Set(fiber.HeaderContentType, contentType)
	if lang := info.Metadata["language"]; lang != "" {
		c.Set(HeaderLanguage, lang)
	}
	return c.Send(data)
}

func (h *outputsHandler) remove(c *fiber.Ctx) error {
	if err := h.archive.Remove(c.UserContext(), c.Params("id")); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return httputil.WriteError(c, fiber.StatusNotFound, "output not found")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}
