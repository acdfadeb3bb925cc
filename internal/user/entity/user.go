package entity

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already used")
)

// PasswordHasher hashes and verifies credential secrets.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// Credentialed is implemented by identities holding a hashed secret.
type Credentialed interface {
	SetPassword(h PasswordHasher, plain string) error
	CheckPassword(h PasswordHasher, plain string) bool
}

// Authorizable is implemented by identities that can own resources.
type Authorizable interface {
	Owns(ownerID int64) bool
}

// User is a row of the users table. Email is unique and compared exactly as stored.
type User struct {
	ID            int64      `db:"id"`
	Email         string     `db:"email"`
	PasswordHash  string     `db:"password_hash"`
	FirstName     *string    `db:"first_name"`
	LastName      *string    `db:"last_name"`
	EmailVerified bool       `db:"email_verified"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at"`
	IsDeleted     bool       `db:"is_deleted"`
}

var (
	_ Credentialed = (*User)(nil)
	_ Authorizable = (*User)(nil)
)

// SetPassword replaces the stored hash; the plain secret is never kept.
func (u *User) SetPassword(h PasswordHasher, plain string) error {
	hash, err := h.Hash(plain)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(h PasswordHasher, plain string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return h.Verify(u.PasswordHash, plain)
}

// Owns reports whether u is the owner identified by ownerID.
func (u *User) Owns(ownerID int64) bool {
	return u != nil && u.ID == ownerID
}

// OwnerID makes a user a resource owned by itself.
func (u *User) OwnerID() int64 { return u.ID }

// MetaData is the one-to-one enrichment record for a user. Both payloads are
// raw JSON from the lookups and may be nil.
type MetaData struct {
	UserID         int64     `db:"user_id"`
	GeoData        []byte    `db:"geo_data"`
	PublicHolidays []byte    `db:"public_holidays"`
	UpdatedAt      time.Time `db:"updated_at"`
}

type MetaDataView struct {
	GeoData        json.RawMessage `json:"geo_data"`
	PublicHolidays json.RawMessage `json:"public_holidays"`
}

// PrivateView is what an owner sees of their own account.
type PrivateView struct {
	ID            int64        `json:"id"`
	Email         string       `json:"email"`
	FirstName     *string      `json:"first_name"`
	LastName      *string      `json:"last_name"`
	EmailVerified bool         `json:"email_verified"`
	MetaData      MetaDataView `json:"meta_data"`
}

// PublicView is what other users see.
type PublicView struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

func (u *User) Private(meta *MetaData) PrivateView {
	v := PrivateView{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		EmailVerified: u.EmailVerified,
	}
	if meta != nil {
		v.MetaData = MetaDataView{GeoData: rawOrNil(meta.GeoData), PublicHolidays: rawOrNil(meta.PublicHolidays)}
	}
	return v
}

func (u *User) Public() PublicView {
	return PublicView{FirstName: u.FirstName, LastName: u.LastName}
}

// empty payloads render as null
func rawOrNil(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}
