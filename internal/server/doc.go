// Package server provides HTTP routing, middleware and the JSON API for OAuth login and provider analytics.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering. Middleware wraps the method
// check so CORS preflight requests are answered before a 405.
//
// The default stack is [Recover], [Logging], [CORS] and the session middleware from internal/session.
//
// # OAuth Flow
//
//	GET /auth/login                  → {"google_auth_url": ..., "spotify_auth_url": ..., "facebook_auth_url": ...}
//	GET /auth/login/{provider}       → {"auth_url": ...}, or a 302 when redirect=true
//	GET /auth/callback/{provider}    → exchanges the code and stores the token in the session
//	GET /auth/status                 → per provider: authenticated, token_type, expires_at, has_refresh_token
//	GET /auth/logout                 → removes every provider token from the session
//
// Each login issues a random state which is kept in the session and consumed by the callback.
// A missing or mismatched state is rejected with 400.
//
// # Analytics
//
//	GET /google/youtube/partner-channels
//	GET /google/youtube/owner-channel
//	GET /google/youtube/analytics?content_owner_id=&start_date=&end_date=
//	GET /google/youtube/analytics/auto?start_date=&end_date=
//	GET /google/ga4/property
//	GET /google/ga4/analytics?property_id=&start_date=&end_date=&has_admin_access=
//	GET /google/ga4/analytics/auto?start_date=&end_date=&has_admin_access=
//	GET /spotify/profile
//	GET /spotify/artists?limit=&after=
//	GET /spotify/top/{artists|tracks}?time_range=&limit=&offset=
//	GET /facebook/page-insights/{page_id}
//
// Query strings are decoded with mapstructure and validated with validator tags.
//
// # Errors
//
// Failures are rendered as {"success": false, "error": "..."} with the status from [shared.HTTPStatus].
package server
