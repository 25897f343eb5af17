package server

import (
	"fmt"
	"net/http"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/models"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/services"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
)

type dateQuery struct {
	StartDate string `mapstructure:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `mapstructure:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// dateRange fills missing bounds from [services.DefaultDateRange].
func (q dateQuery) dateRange() services.DateRange {
	r := services.DefaultDateRange
	if q.StartDate != "" {
		r.Start = q.StartDate
	}
	if q.EndDate != "" {
		r.End = q.EndDate
	}
	return r
}

type youtubeQuery struct {
	dateQuery      `mapstructure:",squash"`
	ContentOwnerID string `mapstructure:"content_owner_id" validate:"required"`
}

type ga4Query struct {
	dateQuery      `mapstructure:",squash"`
	PropertyID     string `mapstructure:"property_id" validate:"required"`
	HasAdminAccess bool   `mapstructure:"has_admin_access"`
}

type ga4AutoQuery struct {
	dateQuery      `mapstructure:",squash"`
	HasAdminAccess bool `mapstructure:"has_admin_access"`
}

type artistsQuery struct {
	Limit int    `mapstructure:"limit" validate:"omitempty,min=1,max=50"`
	After string `mapstructure:"after"`
}

type topQuery struct {
	TimeRange string `mapstructure:"time_range" validate:"omitempty,oneof=short_term medium_term long_term"`
	Limit     int    `mapstructure:"limit" validate:"omitempty,min=1,max=50"`
	Offset    int    `mapstructure:"offset" validate:"omitempty,min=0"`
}

// respond writes v, or the error as {"success": false, "error": ...}.
func (s *Server) respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePartnerChannels(w http.ResponseWriter, r *http.Request) {
	src, err := s.source(r, models.Google)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	out, err := s.google.PartnerChannels(r.Context(), src)
	s.respond(w, out, err)
}

func (s *Server) handleOwnerChannel(w http.ResponseWriter, r *http.Request) {
	src, err := s.source(r, models.Google)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	out, err := s.google.OwnerChannel(r.Context(), src)
	s.respond(w, out, err)
}

func (s *Server) handleYouTubeAnalytics(w http.ResponseWriter, r *http.Request) {
	q, err := bindQuery[youtubeQuery](r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	src, err := s.source(r, models.Google)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	out, err := s.google.YouTubeAnalytics(r.Context(), src, q.ContentOwnerID, q.dateRange())
	s.respond(w, out, err)
}

func (s *Server) handleYouTubeAnalyticsAuto(w http.ResponseWriter, r *http.Request) {
	q, err := bindQuery[dateQuery](r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	src, err := s.source(r, models.Google)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	out, err := s.google.YouTubeAnalyticsAuto(r.Context(), src, q.dateRange())
	s.respond(w, out, err)
}

func (s *Server) handleGA4Property(w http.ResponseWriter, r *http.Request) {
	src, err := s.source(r, models.Google)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	props, err := s.google.GA4Properties(r.Context(), src)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"properties": props})
}

func (s *Server) handleGA4Analytics(w http.ResponseWriter, r *http.Request) {
	q, err := bindQuery[ga4Query](r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	src, err := s.source(r, models.Google)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	out, err := s.google.GA4Analytics(r.Context(), src, q.PropertyID, q.dateRange(), q.HasAdminAccess)
	s.respond(w, out, err)
}

func (s *Server) handleGA4AnalyticsAuto(w http.ResponseWriter, r *http.Request) {
	q, err := bindQuery[ga4AutoQuery](r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	src, err := s.source(r, models.Google)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	out, err := s.google.GA4AnalyticsAuto(r.Context(), src, q.dateRange(), q.HasAdminAccess)
	s.respond(w, out, err)
}

func (s *Server) handleSpotifyProfile(w http.ResponseWriter, r *http.Request) {
	src, err := s.source(r, models.Spotify)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	out, err := s.spotify.UserProfile(r.Context(), src)
	s.respond(w, out, err)
}

func (s *Server) handleSpotifyArtists(w http.ResponseWriter, r *http.Request) {
	q, err := bindQuery[artistsQuery](r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	src, err := s.source(r, models.Spotify)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	out, err := s.spotify.FollowedArtists(r.Context(), src, q.Limit, q.After)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"followed_artists": out})
}

func (s *Server) handleSpotifyTop(w http.ResponseWriter, r *http.Request) {
	q, err := bindQuery[topQuery](r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	query := services.TopQuery{TimeRange: q.TimeRange, Limit: q.Limit, Offset: q.Offset}

	src, err := s.source(r, models.Spotify)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	switch kind := r.PathValue("kind"); kind {
	case "artists":
		out, err := s.spotify.TopArtists(r.Context(), src, query)
		s.respond(w, out, err)
	case "tracks":
		out, err := s.spotify.TopTracks(r.Context(), src, query)
		s.respond(w, out, err)
	default:
		writeError(w, s.logger, fmt.Errorf("%w: top item type must be artists or tracks, got %q", shared.ErrInvalidArgument, kind))
	}
}

func (s *Server) handlePageInsights(w http.ResponseWriter, r *http.Request) {
	src, err := s.source(r, models.Facebook)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	out, err := s.facebook.PageInsights(r.Context(), src, r.PathValue("page_id"))
	s.respond(w, out, err)
}
