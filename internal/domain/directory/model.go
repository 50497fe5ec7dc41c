package directory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found in directory")

// Patient is an animal registered with the clinic.
type Patient struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Species   string     `json:"species"`
	Breed     string     `json:"breed,omitempty"`
	Sex       string     `json:"sex,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Owner     Owner      `json:"owner"`
}

type Owner struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone,omitempty"`
	Email string    `json:"email,omitempty"`
}

// Staff is a clinic user referenced by id in clinical records.
type Staff struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role,omitempty"`
}
