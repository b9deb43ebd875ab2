package public

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/voiceclone/internal/app"
)

// Register wires the synthesis API. Archive and history routes exist only
// when those features are enabled.
func Register(router fiber.Router, container *app.Container) {
	tts := &ttsHandler{container: container}
	router.Post("/tts", tts.synthesize)
	router.Get("/languages", tts.languages)

	if container.Archive != nil {
		outputs := &outputsHandler{archive: container.Archive}
		router.Get("/outputs/:id", outputs.get)
		router.Delete("/outputs/:id", outputs.remove)
	}
	if container.History != nil {
		hist := &historyHandler{store: container.History}
		router.Get("/history", hist.list)
	}
}
