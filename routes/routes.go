package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/astracat/catform/app"
	"github.com/astracat/catform/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Logger, middleware.Recoverer)

	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	// public form surface
	api.Get("/forms/{id}", PublicGetForm(app))
	api.Post("/forms/{id}/responses", SubmitResponse(app))
	api.Post("/forms/{id}/events", TrackEvent(app))

	// authoring surface
	api.Group(func(r chi.Router) {
		r.Use(middlewares.Authenticated(app.TokenSecret))

		// CRUD forms
		r.Post("/forms", CreateForm(app))
		r.Get("/forms", ListForms(app))
		r.Patch("/forms/{id}", UpdateForm(app))
		r.Delete("/forms/{id}", DeleteForm(app))

		// CRUD fields
		r.Get("/forms/{id}/fields", ListFields(app))
		r.Post("/forms/{id}/fields", CreateField(app))
		r.Patch("/forms/{id}/fields/{fieldId}", UpdateField(app))
		r.Delete("/forms/{id}/fields/{fieldId}", DeleteField(app))

		// collected data
		r.Get("/forms/{id}/responses", ListResponses(app))
		r.Get("/forms/{id}/analytics", GetFormAnalytics(app))
		r.Get("/forms/{id}/export", ExportResponses(app))
	})

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	return api
}
