package api

import "github.com/soaringjerry/Vox/internal/services"

// Store is everything the HTTP shims persist. Both MemoryStore and
// db.SQLiteStore satisfy it.
type Store interface {
	services.SessionStore
	services.RoleStore
	services.RecordingStore
	services.WhitelistStore
}

var _ Store = (*MemoryStore)(nil)
