// Package models defines the client-side data model shared by the session,
// profile, signup and progress components: sessions and their token handles,
// user profiles with their enumerated enrollment fields, typed partial profile
// updates, and local progress sets.
package models
