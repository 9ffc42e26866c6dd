package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/visagevault/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	jobsHandler := handlers.NewJobsHandler(s.app, s.log)
	assetsHandler := handlers.NewAssetsHandler(s.app, s.log)
	thumbnailsHandler := handlers.NewThumbnailsHandler(s.app)
	facesHandler := handlers.NewFacesHandler(s.app, s.log)
	identitiesHandler := handlers.NewIdentitiesHandler(s.app)
	clustersHandler := handlers.NewClustersHandler(s.app, s.log)
	viewportsHandler := handlers.NewViewportsHandler(s.app, s.log)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Scans (long-running, one per kind)
		r.Post("/scans/{kind}", jobsHandler.StartScan)
		r.Get("/scans/{kind}", jobsHandler.ActiveScan)

		// Jobs
		r.Get("/jobs", jobsHandler.List)
		r.Get("/jobs/{jobId}", jobsHandler.Get)
		r.Get("/jobs/{jobId}/events", jobsHandler.Events)
		r.Delete("/jobs/{jobId}", jobsHandler.Cancel)

		// Assets
		r.Get("/assets", assetsHandler.List)
		r.Get("/assets/date", assetsHandler.GetDate)
		r.Get("/assets/metadata", assetsHandler.GetMetadata)
		r.Put("/assets/date", assetsHandler.SetDate)
		r.Get("/thumbnails", thumbnailsHandler.Get)

		// Faces
		r.Get("/faces", facesHandler.Counts)
		r.Get("/faces/{id}", facesHandler.Get)
		r.Get("/faces/{id}/crop", facesHandler.Crop)
		r.Post("/faces/{id}/delete", facesHandler.Delete)
		r.Post("/faces/{id}/restore", facesHandler.Restore)
		r.Post("/faces/{id}/label", facesHandler.Label)
		r.Delete("/faces/{id}/label", facesHandler.Unlabel)

		// Identities
		r.Get("/identities", identitiesHandler.List)
		r.Get("/identities/{id}/faces", identitiesHandler.Faces)
		r.Put("/identities/{id}", identitiesHandler.Rename)

		// Cluster review
		r.Get("/clusters", clustersHandler.Get)
		r.Post("/clusters/resolve", clustersHandler.Resolve)
		r.Delete("/clusters", clustersHandler.Cancel)

		// Viewport-driven preview loading
		r.Post("/viewports", viewportsHandler.Create)
		r.Post("/viewports/{id}", viewportsHandler.Update)
		r.Get("/viewports/{id}/events", viewportsHandler.Events)
		r.Delete("/viewports/{id}", viewportsHandler.Delete)
	})
}
