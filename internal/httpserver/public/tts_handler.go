package public

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/voiceclone/internal/app"
	"github.com/ncecere/voiceclone/internal/httpserver/httputil"
	"github.com/ncecere/voiceclone/internal/languages"
	"github.com/ncecere/voiceclone/internal/limits"
	"github.com/ncecere/voiceclone/internal/synth"
)

const (
	HeaderLanguage = "X-Language"
	HeaderCache    = "X-Cache"
	HeaderOutputID = "X-Output-ID"
)

type ttsHandler struct {
	container *app.Container
}

type ttsRequest struct {
	Voice    string `json:"voice"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

type languagesResponse struct {
	Default   languages.Code       `json:"default"`
	Languages []languages.Language `json:"languages"`
}

func (h *ttsHandler) synthesize(c *fiber.Ctx) error {
	var payload ttsRequest
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid JSON body")
	}
	text := strings.TrimSpace(payload.Text)
	if strings.TrimSpace(payload.Voice) == "" || text == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "missing voice or text")
	}

	ctx := c.UserContext()
	release, err := h.container.AcquireRateLimits(ctx, httputil.ClientKey(c), utf8.RuneCountInString(text))
	if err != nil {
		if errors.Is(err, limits.ErrLimitExceeded) {
			return httputil.WriteError(c, fiber.StatusTooManyRequests, "rate limit exceeded")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	defer release()

	res, err := h.container.Synth.Synthesize(ctx, synth.Request{
		Voice:    payload.Voice,
		Text:     payload.Text,
		Language: payload.Language,
	})
	if err != nil {
		return httputil.WriteError(c, statusForError(err), err.Error())
	}

	cacheStatus := "MISS"
	if res.Cached {
		cacheStatus = "HIT"
	}
	c.Set(fiber.HeaderContentType, res.ContentType)
	c.Set(HeaderLanguage, string(res.Language))
	c.Set(HeaderCache, cacheStatus)
	if res.OutputID != "" {
		c.Set(HeaderOutputID, res.OutputID)
	}
	return c.Status(fiber.StatusOK).Send(res.Audio)
}

func (h *ttsHandler) languages(c *fiber.Ctx) error {
	return c.JSON(languagesResponse{
		Default:   h.container.Synth.DefaultLanguage(),
		Languages: languages.List(),
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, synth.ErrMissingInput):
		return fiber.StatusBadRequest
	case errors.Is(err, synth.ErrVoiceNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, limits.ErrLimitExceeded):
		return fiber.StatusTooManyRequests
	case errors.Is(err, synth.ErrEngineUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
