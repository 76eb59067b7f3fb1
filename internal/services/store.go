package services

import "errors"

// ErrKeyNotFound is returned by Store.Load when the key has never been
// saved.
var ErrKeyNotFound = errors.New("store: key not found")

// Store is the opaque key to JSON blob collaborator that keeps cache
// entries durable across restarts. Implementations must tolerate concurrent
// calls from the refresh pipeline and the cleanup job.
type Store interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
	Delete(key string) error
	Keys() ([]string, error)
}
