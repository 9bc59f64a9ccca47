// Package store persists the session and recording-file catalog in SQLite.
package store
