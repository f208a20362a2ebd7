// Package users persists Telegram users, their authorization and language.
package users

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var usersBucket = []byte("users")

// ErrNotFound is returned when a user is not stored.
var ErrNotFound = errors.New("user not found")

// User is a stored Telegram user.
type User struct {
	ID         int64     `json:"id"`
	Language   string    `json:"language,omitempty"`
	Authorized bool      `json:"authorized"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is a bbolt backed user store.
type Store struct {
	db     *bolt.DB
	logger *logrus.Logger
}

// Open opens or creates the database at path.
func Open(path string, logger *logrus.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open users db %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(usersBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create users bucket: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(id int64) []byte {
	return []byte(strconv.FormatInt(id, 10))
}

func get(tx *bolt.Tx, id int64) (User, error) {
	data := tx.Bucket(usersBucket).Get(key(id))
	if data == nil {
		return User{}, ErrNotFound
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return User{}, fmt.Errorf("decode user %d: %w", id, err)
	}
	return u, nil
}

func put(tx *bolt.Tx, u User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return tx.Bucket(usersBucket).Put(key(u.ID), data)
}

// Get returns the user with the given id.
func (s *Store) Get(id int64) (User, error) {
	var u User
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		u, err = get(tx, id)
		return err
	})
	return u, err
}

// Put stores u, replacing any previous record.
func (s *Store) Put(u User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, u)
	})
}

// update loads the user, creating it when missing, applies fn and stores it.
func (s *Store) update(id int64, fn func(*User)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		u, err := get(tx, id)
		if errors.Is(err, ErrNotFound) {
			u = User{ID: id, CreatedAt: time.Now().UTC()}
		} else if err != nil {
			return err
		}
		fn(&u)
		return put(tx, u)
	})
}

// SetLanguage stores the preferred language of a user.
func (s *Store) SetLanguage(id int64, language string) error {
	return s.update(id, func(u *User) {
		u.Language = language
	})
}

// Authorize grants or revokes access for a user.
func (s *Store) Authorize(id int64, authorized bool) error {
	return s.update(id, func(u *User) {
		u.Authorized = authorized
	})
}

// Seed authorizes every id in ids. Existing records keep their language.
func (s *Store) Seed(ids []int64) error {
	for _, id := range ids {
		if err := s.Authorize(id, true); err != nil {
			return fmt.Errorf("seed user %d: %w", id, err)
		}
	}
	if len(ids) > 0 {
		s.logger.WithField("count", len(ids)).Info("Seeded authorized users")
	}
	return nil
}

// IsAuthorized reports whether the user may use the file browser.
func (s *Store) IsAuthorized(id int64) (bool, error) {
	u, err := s.Get(id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.Authorized, nil
}

// ResolveLanguage picks the stored language, then the client language, then
// the fallback. Lookup errors are logged and fall through.
func (s *Store) ResolveLanguage(id int64, clientLanguage, fallback string) string {
	u, err := s.Get(id)
	switch {
	case err == nil && u.Language != "":
		return u.Language
	case err != nil && !errors.Is(err, ErrNotFound):
		s.logger.WithError(err).WithField("user", id).Warn("Failed to load user language")
	}
	if clientLanguage != "" {
		return clientLanguage
	}
	return fallback
}

// Count returns the number of stored users.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(usersBucket).Stats().KeyN
		return nil
	})
	return n, err
}
