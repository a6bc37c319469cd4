// Package auth provides the credential primitives for thermostatter-api.
//
// This package implements:
//   - Salted one-way password hashing (bcrypt)
//   - Signed bearer token encoding and validation (HMAC JWT)
//
// Both components are leaves: they hold no state beyond their configuration
// and never touch the credential store.
package auth
