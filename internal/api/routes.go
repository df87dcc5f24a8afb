package api

import "github.com/go-chi/chi/v5"

// Handlers groups the resource handlers mounted by RegisterRoutes.
type Handlers struct {
	Users    *UserHandler
	Requests *RequestHandler
	Catalog  *CatalogHandler
}

// RegisterRoutes mounts the resource routes on r.
func RegisterRoutes(r chi.Router, h Handlers) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.Users.ListUsers)
		r.Post("/", h.Users.CreateUser)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Users.GetUser)
			r.Put("/", h.Users.UpdateUser)
			r.Delete("/", h.Users.DeactivateUser)

			r.Get("/books", h.Users.ListBooks)
			r.Post("/books", h.Users.AddBook)
			r.Delete("/books/{entryId}", h.Users.RemoveBook)

			// The user in the path is the acting user of request transitions.
			r.Get("/requests", h.Requests.ListRequests)
			r.Post("/requests", h.Requests.CreateRequest)
			r.Put("/requests/{reqId}", h.Requests.UpdateRequest)
			r.Delete("/requests/{reqId}", h.Requests.CancelRequest)
		})
	})

	r.Get("/search", h.Catalog.Search)
	r.Get("/search/deepsearch", h.Catalog.DeepSearch)

	r.Get("/books", h.Catalog.ListBooks)
	r.Get("/books/{isbn}", h.Catalog.GetBook)
}
