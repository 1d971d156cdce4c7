// Package api implements the HTTP handlers of the web process: messenger
// webhook verification and ingestion, payment provider callbacks, the
// health endpoint, and the token-protected operator API.
package api
