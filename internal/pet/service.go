package pet

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Store persists the whole document. Update runs fn against the current
// document and persists the result only when fn succeeds; View runs fn
// against a snapshot. Implementations serialize Update across every process
// sharing the same backing document, so concurrent writers cannot clobber
// each other. An unpersisted document reads as empty.
type Store interface {
	View(ctx context.Context, fn func(doc *Document) error) error
	Update(ctx context.Context, fn func(doc *Document) error) error
}

// Service is the single data-access point shared by the chat and web
// front-ends. Every logical operation is one Store.Update, so the store's
// serialization covers the whole read-modify-write.
type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store: store,
		log:   logger,
		now:   time.Now,
	}
}

// EnsureUser lazily creates the user record on first contact. Repeat calls
// return the existing record unchanged; in particular the stored username is
// not refreshed when the platform username changes.
func (s *Service) EnsureUser(ctx context.Context, userID, username string) (Profile, error) {
	var out Profile
	err := s.store.Update(ctx, func(doc *Document) error {
		u := ensureUser(doc, userID, username)
		out = profileOf(doc, userID, u)
		return nil
	})
	return out, err
}

func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	var out Profile
	err := s.store.View(ctx, func(doc *Document) error {
		u, ok := doc.Users[userID]
		if !ok {
			return ErrUserNotFound
		}
		out = profileOf(doc, userID, u)
		return nil
	})
	return out, err
}

// Catalog returns the purchasable pet types sorted by price, cheapest first.
func (s *Service) Catalog(ctx context.Context) ([]CatalogEntry, error) {
	var out []CatalogEntry
	err := s.store.View(ctx, func(doc *Document) error {
		out = make([]CatalogEntry, 0, len(doc.Catalog))
		for _, e := range doc.Catalog {
			out = append(out, e)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Price != out[j].Price {
				return out[i].Price < out[j].Price
			}
			return out[i].Key < out[j].Key
		})
		return nil
	})
	return out, err
}

func (s *Service) CatalogEntry(ctx context.Context, key string) (CatalogEntry, error) {
	var out CatalogEntry
	err := s.store.View(ctx, func(doc *Document) error {
		e, ok := doc.Catalog[key]
		if !ok {
			return ErrUnknownPet
		}
		out = e
		return nil
	})
	return out, err
}

// Pet returns the user's owned pet joined with its catalog entry.
func (s *Service) Pet(ctx context.Context, userID string) (PetStatus, error) {
	var out PetStatus
	err := s.store.View(ctx, func(doc *Document) error {
		status, err := petStatus(doc, userID)
		if err != nil {
			return err
		}
		out = status
		return nil
	})
	return out, err
}

// Purchase deducts the catalog price and assigns a fresh pet in a single
// document mutation. On any failure the document is not persisted, so balance
// and ownership are unchanged from before the call. A prior pet is replaced
// unconditionally with no refund.
func (s *Service) Purchase(ctx context.Context, in PurchaseInput) (PetStatus, error) {
	var out PetStatus
	err := s.store.Update(ctx, func(doc *Document) error {
		u, ok := doc.Users[in.UserID]
		if !ok {
			return ErrUserNotFound
		}
		entry, ok := doc.Catalog[in.PetKey]
		if !ok {
			return ErrUnknownPet
		}
		if u.Balance < entry.Price {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, u.Balance, entry.Price)
		}

		u.Balance -= entry.Price
		doc.Pets[in.UserID] = &OwnedPet{
			Owner:     in.UserID,
			Type:      entry.Key,
			Hunger:    StatMax,
			Happiness: StatMax,
			LastCare:  s.now().UTC(),
		}

		status, err := petStatus(doc, in.UserID)
		if err != nil {
			return err
		}
		out = status
		return nil
	})
	if err == nil {
		s.log.Info("pet purchased", "user_id", in.UserID, "pet_key", in.PetKey)
	}
	return out, err
}

// Care applies a feed or play action: +CareIncrement on the targeted stat,
// clamped to StatMax, and refreshes last_care either way. Stats never
// decrease; there is no passive decay anywhere in the system.
func (s *Service) Care(ctx context.Context, in CareInput) (PetStatus, error) {
	if _, err := ParseCareAction(string(in.Action)); err != nil {
		return PetStatus{}, err
	}
	var out PetStatus
	err := s.store.Update(ctx, func(doc *Document) error {
		p, ok := doc.Pets[in.UserID]
		if !ok {
			return ErrNoPetOwned
		}
		switch in.Action {
		case CareFeed:
			p.Hunger = clampStat(p.Hunger + CareIncrement)
		case CarePlay:
			p.Happiness = clampStat(p.Happiness + CareIncrement)
		}
		p.LastCare = s.now().UTC()

		status, err := petStatus(doc, in.UserID)
		if err != nil {
			return err
		}
		out = status
		return nil
	})
	return out, err
}

// Credit is the operator balance top-up; points enter the system only
// through this path.
func (s *Service) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var balance int64
	err := s.store.Update(ctx, func(doc *Document) error {
		u, ok := doc.Users[userID]
		if !ok {
			return ErrUserNotFound
		}
		u.Balance += amount
		balance = u.Balance
		return nil
	})
	if err == nil {
		s.log.Info("balance credited", "user_id", userID, "amount", amount, "balance", balance)
	}
	return balance, err
}

// SeedCatalog populates an empty catalog with the default pet types. It is a
// no-op when any entry already exists, so operator-edited catalogs survive
// restarts.
func (s *Service) SeedCatalog(ctx context.Context) error {
	return s.store.Update(ctx, func(doc *Document) error {
		if len(doc.Catalog) > 0 {
			return nil
		}
		for _, e := range defaultCatalog {
			doc.Catalog[e.Key] = e
		}
		s.log.Info("catalog seeded", "entries", len(defaultCatalog))
		return nil
	})
}

var defaultCatalog = []CatalogEntry{
	{Key: "hamster", Name: "Hamster", Price: 40, Animation: "hamster.gif"},
	{Key: "cat", Name: "Cat", Price: 60, Animation: "cat.gif"},
	{Key: "dog", Name: "Dog", Price: 60, Animation: "dog.gif"},
	{Key: "fox", Name: "Fox", Price: 90, Animation: "fox.gif"},
	{Key: "dragon", Name: "Dragon", Price: 150, Animation: "dragon.gif"},
}

func ensureUser(doc *Document, userID, username string) *User {
	if u, ok := doc.Users[userID]; ok {
		return u
	}
	u := &User{Username: username, Balance: 0}
	doc.Users[userID] = u
	return u
}

func profileOf(doc *Document, userID string, u *User) Profile {
	_, hasPet := doc.Pets[userID]
	return Profile{
		UserID:   userID,
		Username: u.Username,
		Balance:  u.Balance,
		HasPet:   hasPet,
	}
}

func petStatus(doc *Document, userID string) (PetStatus, error) {
	p, ok := doc.Pets[userID]
	if !ok {
		return PetStatus{}, ErrNoPetOwned
	}
	entry, ok := doc.Catalog[p.Type]
	if !ok {
		return PetStatus{}, fmt.Errorf("%w: %q", ErrDanglingPet, p.Type)
	}
	return PetStatus{
		Type:      entry.Key,
		Name:      entry.Name,
		Hunger:    p.Hunger,
		Happiness: p.Happiness,
		LastCare:  p.LastCare,
		Animation: entry.Animation,
	}, nil
}
