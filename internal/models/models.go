// Package models holds the small value types shared across the saga
// domain, repository and transport layers: identifiers, the
// created/updated bookkeeping every saga row carries, the optimistic-lock
// version counter, and the order total the saga is coordinating payment
// for.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ID is a UUID-backed identifier, used for saga IDs, order IDs and
// correlation IDs alike.
type ID string

// GenerateUUID mints a fresh random ID.
func GenerateUUID() ID {
	return ID(uuid.New().String())
}

func (id ID) String() string {
	return string(id)
}

// Timestamps tracks when a saga row was first created and last mutated.
type Timestamps struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewTimestamps() Timestamps {
	now := time.Now()
	return Timestamps{CreatedAt: now, UpdatedAt: now}
}

// Update bumps UpdatedAt to now, leaving CreatedAt untouched.
func (t Timestamps) Update() Timestamps {
	t.UpdatedAt = time.Now()
	return t
}

// Version is the optimistic-lock counter backing the saga repository's
// compare-and-swap Save (WHERE id = :id AND version = :old_version).
type Version struct {
	Value int
}

func NewVersion() Version {
	return Version{Value: 0}
}

func (v Version) Update() Version {
	v.Value++
	return v
}

// Money is the order total a saga coordinates payment, inventory and
// shipping around. It never needs arithmetic of its own: the coordinator
// refunds or releases a step by its ID, not by splitting the amount.
type Money struct {
	Amount   int64  `json:"amount"`   // smallest currency unit (cents)
	Currency string `json:"currency"`
}

func NewMoney(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}
