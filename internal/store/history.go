// Package store persists the nickname history: which nicknames have been
// used from which remote address. The relay consults it once per connection
// to greet returning users with their previous nicknames.
package store

import (
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"
)

var historyBucket = []byte("nickname_history")

// maxPerAddress bounds the history kept for one remote address.
const maxPerAddress = 10

type historyEntry struct {
	Nicknames []string `json:"nicknames"`
	UpdatedAt int64    `json:"updatedAt"` // Unix seconds
}

// OpenDB opens (creating if needed) the relay's bbolt database.
func OpenDB(path string) (*bolt.DB, error) {
	return bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
}

// History is a bbolt-backed record of nicknames keyed by remote address.
type History struct {
	db *bolt.DB
}

// NewHistory creates or opens the history bucket in the given database.
func NewHistory(db *bolt.DB) (*History, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(historyBucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &History{db: db}, nil
}

// Record stores nickname against remoteAddr, moving it to the front if it
// was already known. Called write-through at successful registration.
func (h *History) Record(nickname, remoteAddr string) error {
	return h.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(historyBucket)

		var entry historyEntry
		if data := b.Get([]byte(remoteAddr)); data != nil {
			if err := json.Unmarshal(data, &entry); err != nil {
				// Malformed entry, start over.
				entry = historyEntry{}
			}
		}

		nicknames := []string{nickname}
		for _, n := range entry.Nicknames {
			if n != nickname && len(nicknames) < maxPerAddress {
				nicknames = append(nicknames, n)
			}
		}
		entry.Nicknames = nicknames
		entry.UpdatedAt = time.Now().Unix()

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put([]byte(remoteAddr), data)
	})
}

// LastNicknames returns the nicknames previously registered from
// remoteAddr, most recent first. An unknown address yields an empty list.
func (h *History) LastNicknames(remoteAddr string) []string {
	var nicknames []string
	_ = h.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(historyBucket).Get([]byte(remoteAddr))
		if data == nil {
			return nil
		}
		var entry historyEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil
		}
		nicknames = entry.Nicknames
		return nil
	})
	return nicknames
}
