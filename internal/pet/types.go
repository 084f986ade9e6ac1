package pet

import "time"

type Profile struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Balance  int64  `json:"balance"`
	HasPet   bool   `json:"has_pet"`
}

// PetStatus joins an OwnedPet with its catalog entry for display.
type PetStatus struct {
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Hunger    int       `json:"hunger"`
	Happiness int       `json:"happiness"`
	LastCare  time.Time `json:"last_care"`
	Animation string    `json:"animation"`
}

type PurchaseInput struct {
	UserID string
	PetKey string
}

type CareInput struct {
	UserID string
	Action CareAction
}
