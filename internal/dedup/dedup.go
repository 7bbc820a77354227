// Package dedup implements component E of the retrieval core: a
// persistent set of previously-seen UIDLs, consulted during a session's
// UIDL phase to suppress re-downloading messages already fetched in a
// prior session, with an explicit age-in-sessions eviction policy
// resolving §9 Open Question (b).
package dedup

import (
	"encoding/binary"
	"time"

	bolt "github.com/coreos/bbolt"
)

var bucketName = []byte("uidls")

// Set is a persistent, hostname-scoped UIDL membership table. Keys are the
// "uidl@hostname" strings the session orchestrator builds (§4.D UIDL
// phase); a single Set instance may be shared by every account, since
// appending the hostname already disambiguates accounts that happen to
// reuse UIDL text (§4.E "across accounts, each account sees the entire
// set").
type Set struct {
	db      *bolt.DB
	checked map[string]bool
}

// Open loads (or creates) the persistent UIDL store at path. The caller
// must call Close when done.
func Open(path string) (*Set, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Set{db: db, checked: make(map[string]bool)}, nil
}

// Contains reports whether uidl is in the set: seen in a prior session, or
// already marked during the current one.
func (s *Set) Contains(uidl string) bool {
	var found bool
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		found = b.Get([]byte(uidl)) != nil
		return nil
	})
	return found
}

// Mark records uidl as checked during the current session: present in the
// set (inserting it with age 0 if new), and flagged so EndSession resets
// its age rather than aging it. Mark is idempotent — marking the same
// uidl twice in one session has no additional effect.
func (s *Set) Mark(uidl string) {
	s.checked[uidl] = true
	s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put([]byte(uidl), encodeAge(0))
	})
}

// EndSession advances the age of every entry not marked checked this
// session, evicts entries whose age reaches maxAge (that is, entries left
// unchecked for maxAge consecutive sessions; maxAge <= 0 disables
// eviction), and clears the
// checked set for the next session. Called once per session regardless of
// whether the account's mailbox was empty (§9 supplement: the age counter
// must still advance on an empty-mailbox run).
func (s *Set) EndSession(maxAge int) error {
	defer func() { s.checked = make(map[string]bool) }()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		var toDelete [][]byte

		if err := b.ForEach(func(k, v []byte) error {
			key := string(k)
			age := decodeAge(v)
			if s.checked[key] {
				age = 0
			} else {
				age++
			}
			if maxAge > 0 && age >= maxAge {
				toDelete = append(toDelete, append([]byte(nil), k...))
				return nil
			}
			return b.Put(k, encodeAge(age))
		}); err != nil {
			return err
		}

		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the underlying store.
func (s *Set) Close() error {
	return s.db.Close()
}

func encodeAge(age int) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(age))
	return buf
}

func decodeAge(b []byte) int {
	if len(b) < 4 {
		return 0
	}
	return int(binary.BigEndian.Uint32(b))
}
