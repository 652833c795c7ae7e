package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Get("/", apiHandler.RootHandler)
	r.Get("/health", apiHandler.HealthHandler)

	// Document question answering
	r.Post("/upload", apiHandler.UploadDocumentHandler)
	r.Post("/ask", apiHandler.AskHandler)
	r.Post("/ask-outlet", apiHandler.AskOutletHandler)
	r.Post("/ask-outlet-command-slots", apiHandler.AskOutletCommandSlotsHandler)
	r.Post("/ask-menu", apiHandler.AskMenuHandler)

	// Image question answering
	r.Post("/ask-image-upload", apiHandler.AskImageUploadHandler)
	r.Post("/ask-image-question", apiHandler.AskImageQuestionHandler)

	// Command tree management
	r.Route("/commands", func(r chi.Router) {
		r.Post("/", apiHandler.CreateCommandsHandler)
		r.Get("/rootcommands", apiHandler.RootCommandsHandler)
		r.Delete("/delete/{commandID}", apiHandler.DeleteCommandHandler)
		r.Delete("/delete-slots", apiHandler.DeleteSlotsHandler)
		r.Delete("/images/{imageID}", apiHandler.DetachCommandImageHandler)
		r.Post("/{commandID}/slots", apiHandler.AddSlotsHandler)
		r.Post("/{commandID}/images", apiHandler.AttachCommandImageHandler)
		r.Get("/{outlet}", apiHandler.ListCommandsHandler)
	})

	return r
}
