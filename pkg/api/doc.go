// Package api is the HTTP surface of the authentication core.
//
// Routes (all under /api/v1/auth):
//
//	POST /register                      create a local account, returns a token pair
//	POST /login                         verify credentials, returns a token pair
//	POST /refresh                       rotate a refresh token (single use)
//	POST /logout                        revoke the presented access token
//	POST /logout-all                    revoke every session, re-mint for the caller
//	GET  /me                            the authenticated user's profile
//	GET  /oauth/{provider}              start an OAuth flow, returns the provider URL
//	GET  /oauth/callback/{provider}     complete the flow, returns a token pair
//
// Plus GET /health/live, GET /health/ready and GET /metrics at the root.
//
// Handlers return the httputil error envelope with stable codes; the
// guard in pkg/middleware protects /logout-all and /me.
package api
