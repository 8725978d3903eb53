// Package users is the postgres-backed account store: local credentials
// and the linkage of third-party provider accounts to local users.
//
// A user may have a password, linked provider accounts, or both. Provider
// links live in their own table keyed by (provider, provider account id),
// so one user can carry several providers and a provider account can
// never be attached to two users.
package users
