package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/beesaferoot/rentals/internal/application"
	"github.com/beesaferoot/rentals/internal/auth"
	"github.com/beesaferoot/rentals/internal/calendar"
	"github.com/beesaferoot/rentals/internal/lease"
	"github.com/beesaferoot/rentals/internal/listing"
	"github.com/beesaferoot/rentals/internal/models"
)

// serve resolves the actor, runs fn and writes its result with status.
func (s *Server) serve(w http.ResponseWriter, r *http.Request, status int, fn func(actor auth.Actor) (any, error)) {
	actor, err := actorOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := fn(actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if out == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, status, out)
}

// listings

func (s *Server) createListing(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusCreated, func(actor auth.Actor) (any, error) {
		if err := auth.RequireRole(actor, models.RoleLandlord); err != nil {
			return nil, err
		}
		var in listing.NewListing
		if err := decode(r, &in); err != nil {
			return nil, err
		}
		return s.listings.Create(r.Context(), actor.UserID, in)
	})
}

func (s *Server) myListings(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		if err := auth.RequireRole(actor, models.RoleLandlord); err != nil {
			return nil, err
		}
		return s.listings.ListByLandlord(r.Context(), actor.UserID)
	})
}

func (s *Server) getListing(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(auth.Actor) (any, error) {
		return s.listings.Get(r.Context(), chi.URLParam(r, "listingID"))
	})
}

// calendar

type addDatesRequest struct {
	Dates []calendar.DateWindow `json:"dates"`
}

func (s *Server) listViewingDates(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		return s.apps.ViewingDates(r.Context(), actor, chi.URLParam(r, "listingID"))
	})
}

func (s *Server) addViewingDates(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusCreated, func(actor auth.Actor) (any, error) {
		var in addDatesRequest
		if err := decode(r, &in); err != nil {
			return nil, err
		}
		return s.apps.AddViewingDates(r.Context(), actor, chi.URLParam(r, "listingID"), in.Dates)
	})
}

func (s *Server) updateViewingDate(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		var upd calendar.DateUpdate
		if err := decode(r, &upd); err != nil {
			return nil, err
		}
		return s.apps.UpdateViewingDate(r.Context(), actor,
			chi.URLParam(r, "listingID"), chi.URLParam(r, "dateID"), upd)
	})
}

func (s *Server) removeViewingDate(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusNoContent, func(actor auth.Actor) (any, error) {
		return nil, s.apps.RemoveViewingDate(r.Context(), actor,
			chi.URLParam(r, "listingID"), chi.URLParam(r, "dateID"))
	})
}

func (s *Server) availableDates(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(auth.Actor) (any, error) {
		return s.apps.AvailableDates(r.Context(), chi.URLParam(r, "listingID"))
	})
}

func (s *Server) availableSlots(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(auth.Actor) (any, error) {
		return s.apps.AvailableSlots(r.Context(), chi.URLParam(r, "listingID"), chi.URLParam(r, "date"))
	})
}

// applications

type decisionRequest struct {
	Decision application.Decision `json:"decision"`
}

func (s *Server) listingApplications(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		return s.apps.ListForListing(r.Context(), actor, chi.URLParam(r, "listingID"))
	})
}

func (s *Server) applicationSummaries(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		return s.apps.Summaries(r.Context(), actor, chi.URLParam(r, "listingID"))
	})
}

func (s *Server) apply(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusCreated, func(actor auth.Actor) (any, error) {
		var in application.ApplyInput
		if err := decode(r, &in); err != nil {
			return nil, err
		}
		return s.apps.Apply(r.Context(), actor, in)
	})
}

func (s *Server) myApplications(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		return s.apps.ListForTenant(r.Context(), actor)
	})
}

func (s *Server) getApplication(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		return s.apps.Get(r.Context(), actor, chi.URLParam(r, "appID"))
	})
}

func (s *Server) promote(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		return s.apps.Promote(r.Context(), actor, chi.URLParam(r, "appID"))
	})
}

func (s *Server) decide(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		var in decisionRequest
		if err := decode(r, &in); err != nil {
			return nil, err
		}
		return s.apps.Decide(r.Context(), actor, chi.URLParam(r, "appID"), in.Decision)
	})
}

func (s *Server) reschedule(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		var in application.ViewingInput
		if err := decode(r, &in); err != nil {
			return nil, err
		}
		return s.apps.Reschedule(r.Context(), actor, chi.URLParam(r, "appID"), in)
	})
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		return s.apps.Cancel(r.Context(), actor, chi.URLParam(r, "appID"))
	})
}

func (s *Server) terminate(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		return s.apps.Terminate(r.Context(), actor, chi.URLParam(r, "appID"))
	})
}

// lease

type startDateRequest struct {
	Date string `json:"date"`
}

type changesRequest struct {
	Reason string `json:"reason"`
}

type commentRequest struct {
	Text     string  `json:"text"`
	ParentID *string `json:"parent_id,omitempty"`
}

func (s *Server) getLease(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		return s.leases.Get(r.Context(), actor, chi.URLParam(r, "appID"))
	})
}

func (s *Server) proposeStartDate(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		var in startDateRequest
		if err := decode(r, &in); err != nil {
			return nil, err
		}
		return s.leases.ProposeStartDate(r.Context(), actor, chi.URLParam(r, "appID"), in.Date)
	})
}

func (s *Server) approveStartDate(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		return s.leases.ApproveStartDate(r.Context(), actor, chi.URLParam(r, "appID"))
	})
}

func (s *Server) approveLease(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		return s.leases.ApproveAgreement(r.Context(), actor, chi.URLParam(r, "appID"))
	})
}

func (s *Server) requestChanges(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		var in changesRequest
		if err := decode(r, &in); err != nil {
			return nil, err
		}
		return s.leases.RequestChanges(r.Context(), actor, chi.URLParam(r, "appID"), in.Reason)
	})
}

func (s *Server) markSigned(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		return s.leases.MarkSigned(r.Context(), actor, chi.URLParam(r, "appID"))
	})
}

func (s *Server) leaseDocuments(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		return s.leases.Documents(r.Context(), actor, chi.URLParam(r, "appID"))
	})
}

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusCreated, func(actor auth.Actor) (any, error) {
		var in lease.DocumentInput
		if err := decode(r, &in); err != nil {
			return nil, err
		}
		return s.leases.UploadDocument(r.Context(), actor, chi.URLParam(r, "appID"), in)
	})
}

// leaseComments returns the flat thread, or the reply forest with ?view=tree.
func (s *Server) leaseComments(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusOK, func(actor auth.Actor) (any, error) {
		appID := chi.URLParam(r, "appID")
		if r.URL.Query().Get("view") == "tree" {
			return s.leases.CommentTree(r.Context(), actor, appID)
		}
		return s.leases.Comments(r.Context(), actor, appID)
	})
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, http.StatusCreated, func(actor auth.Actor) (any, error) {
		var in commentRequest
		if err := decode(r, &in); err != nil {
			return nil, err
		}
		return s.leases.AddComment(r.Context(), actor, chi.URLParam(r, "appID"), in.Text, in.ParentID)
	})
}
