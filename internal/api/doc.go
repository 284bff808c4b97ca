// Package api contains the HTTP handlers for the authentication and task
// endpoints, plus the request/response payload types they share.
package api
