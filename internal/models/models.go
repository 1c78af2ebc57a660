package models

import (
	"time"
)

// Model is a row of the run-history store.
type Model interface {
	ID() string
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Validate() error
}

// Repository is the CRUD surface of a run-history table. Deletes are soft; List takes
// column filters plus an optional "limit" and returns newest first.
type Repository[T Model] interface {
	Create(model T) error
	Get(id string) (T, error)
	Latest() (T, error)
	Update(model T) error
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
}
