// Package services fetches analytics and profile data from provider APIs on behalf of an authenticated session.
//
// # Client
//
// Every service shares one [Client]. It rate limits outbound calls, attaches the bearer token and turns
// non-2xx responses into [shared.RemoteError] values of kind [shared.ErrAPIRequest] that carry the provider's
// status code and body.
//
// Access tokens come from a [tokens.TokenSource], so an expiring token is refreshed before the call is made.
//
// # Google
//
// [GoogleService] covers the YouTube Partner and Data APIs, YouTube Analytics reports and GA4.
// The "auto" variants discover the first content owner or GA4 property before running the report and fail with
// [shared.ErrNotFound] when there is none.
//
// YouTube analytics combines three reports (monetization, audience_insights, demographics). A report that fails is
// embedded as {"error": "..."} so the other two still reach the caller.
//
// # Spotify
//
// [SpotifyService] reads the user's profile, followed artists and top artists or tracks. Bodies are returned as
// received, so fields such as href and external_urls reach the caller.
//
// # Facebook
//
// [FacebookService] reads daily page insights from the Graph API.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : no token stored for the provider
//   - [shared.ErrRefreshFailed] : the stored token could not be refreshed
//   - [shared.ErrAPIRequest] : the provider answered with a non-2xx status
//   - [shared.ErrNotFound] : auto discovery found nothing to report on
//   - [shared.ErrMissingArgument] : a required identifier was empty
package services
