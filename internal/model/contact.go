package model

import "github.com/google/uuid"

// Contact is the durable identity of a recipient. Owned by the
// contact-management subsystem; this service only reads it.
type Contact struct {
	Base
	Phone        string  `json:"phone" db:"phone"`
	Name         string  `json:"name" db:"name"`
	Email        string  `json:"email" db:"email"`
	CustomFields JSONMap `json:"custom_fields" db:"custom_fields"`
	OptedOut     bool    `json:"opted_out" db:"opted_out"`
}

// ContactRef is the minimal {id, phone} pair the contact store returns
// from a batch phone lookup.
type ContactRef struct {
	ID    uuid.UUID `json:"id" db:"id"`
	Phone string    `json:"phone" db:"phone"`
}
