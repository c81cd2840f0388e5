// Package httpapi exposes the calendar, application and lease services over
// JSON/HTTP. Handlers stay thin: they decode the request, call one service
// operation with the authenticated actor and encode the result.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/beesaferoot/rentals/internal/application"
	"github.com/beesaferoot/rentals/internal/auth"
	"github.com/beesaferoot/rentals/internal/lease"
	"github.com/beesaferoot/rentals/internal/listing"
	"github.com/beesaferoot/rentals/internal/logging"
)

// Deps are the services the handlers call.
type Deps struct {
	Listings     *listing.Store
	Applications *application.Service
	Leases       *lease.Service
	Verifier     *auth.TokenVerifier
	Logger       *logging.Logger
}

// Server routes HTTP requests to the services.
type Server struct {
	listings *listing.Store
	apps     *application.Service
	leases   *lease.Service
	verifier *auth.TokenVerifier
	log      *logging.Logger
}

func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	return &Server{
		listings: d.Listings,
		apps:     d.Applications,
		leases:   d.Leases,
		verifier: d.Verifier,
		log:      d.Logger,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			s.log.Warn("[http] healthz write error: %v", err)
		}
	})

	r.Route("/v1", func(api chi.Router) {
		api.Use(s.authenticate)

		api.Route("/listings", func(lr chi.Router) {
			lr.Post("/", s.createListing)
			lr.Get("/", s.myListings)
			lr.Route("/{listingID}", func(one chi.Router) {
				one.Get("/", s.getListing)

				one.Get("/viewing-dates", s.listViewingDates)
				one.Post("/viewing-dates", s.addViewingDates)
				one.Patch("/viewing-dates/{dateID}", s.updateViewingDate)
				one.Delete("/viewing-dates/{dateID}", s.removeViewingDate)

				one.Get("/availability", s.availableDates)
				one.Get("/availability/{date}", s.availableSlots)

				one.Get("/applications", s.listingApplications)
				one.Get("/application-summaries", s.applicationSummaries)
			})
		})

		api.Route("/applications", func(ar chi.Router) {
			ar.Post("/", s.apply)
			ar.Get("/", s.myApplications)
			ar.Route("/{appID}", func(one chi.Router) {
				one.Get("/", s.getApplication)
				one.Post("/promote", s.promote)
				one.Post("/decision", s.decide)
				one.Post("/reschedule", s.reschedule)
				one.Post("/cancel", s.cancel)
				one.Post("/terminate", s.terminate)

				one.Route("/lease", func(lr chi.Router) {
					lr.Get("/", s.getLease)
					lr.Post("/start-date", s.proposeStartDate)
					lr.Post("/start-date/approve", s.approveStartDate)
					lr.Post("/approve", s.approveLease)
					lr.Post("/request-changes", s.requestChanges)
					lr.Post("/sign", s.markSigned)
					lr.Get("/documents", s.leaseDocuments)
					lr.Post("/documents", s.uploadDocument)
					lr.Get("/comments", s.leaseComments)
					lr.Post("/comments", s.addComment)
				})
			})
		})
	})
	return r
}

// authenticate resolves the bearer token into an actor on the request
// context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			token = ""
		}
		actor, err := s.verifier.Verify(token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("[http] %s %s -> %d (%s) id=%s", r.Method, r.URL.Path, ww.Status(),
			time.Since(start).Round(time.Microsecond), middleware.GetReqID(r.Context()))
	})
}

// NewHTTPServer wraps h in an http.Server with conservative timeouts.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
