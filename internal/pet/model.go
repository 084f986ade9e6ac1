package pet

import (
	"errors"
	"time"
)

const (
	StatMin = 0
	StatMax = 100

	// CareIncrement is added to the targeted stat by a single care action,
	// saturating at StatMax.
	CareIncrement = 20
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUnknownPet          = errors.New("unknown pet type")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNoPetOwned          = errors.New("no pet owned")
	ErrDanglingPet         = errors.New("owned pet references missing catalog entry")
	ErrInvalidAmount       = errors.New("amount must be > 0")
	ErrInvalidCareAction   = errors.New("care action must be feed or play")
)

// Document is the whole persisted state. Absent top-level keys are tolerated
// on load and defaulted to empty maps by Normalize.
type Document struct {
	Users   map[string]*User        `json:"users"`
	Catalog map[string]CatalogEntry `json:"pets_catalog"`
	Pets    map[string]*OwnedPet    `json:"user_pets"`
}

// User is keyed by the stringified chat-platform id.
type User struct {
	Username string `json:"username"`
	Balance  int64  `json:"balance"`
}

// CatalogEntry is runtime-immutable; the catalog is only written by the
// startup seed, never by user-driven operations.
type CatalogEntry struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Animation string `json:"animation"`
}

// OwnedPet is the single pet a user holds, keyed by owner id in
// Document.Pets. A purchase replaces it unconditionally.
type OwnedPet struct {
	Owner     string    `json:"owner"`
	Type      string    `json:"type"`
	Hunger    int       `json:"hunger"`
	Happiness int       `json:"happiness"`
	LastCare  time.Time `json:"last_care"`
}

type CareAction string

const (
	CareFeed CareAction = "feed"
	CarePlay CareAction = "play"
)

func ParseCareAction(s string) (CareAction, error) {
	switch CareAction(s) {
	case CareFeed:
		return CareFeed, nil
	case CarePlay:
		return CarePlay, nil
	default:
		return "", ErrInvalidCareAction
	}
}

// Normalize replaces nil top-level maps so callers can index freely.
func (d *Document) Normalize() {
	if d.Users == nil {
		d.Users = make(map[string]*User)
	}
	if d.Catalog == nil {
		d.Catalog = make(map[string]CatalogEntry)
	}
	if d.Pets == nil {
		d.Pets = make(map[string]*OwnedPet)
	}
}

func clampStat(v int) int {
	if v < StatMin {
		return StatMin
	}
	if v > StatMax {
		return StatMax
	}
	return v
}
