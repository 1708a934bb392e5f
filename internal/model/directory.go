package model

import "github.com/google/uuid"

// The types below are read-only views of records owned by other services.

type CV struct {
	ID       uuid.UUID `json:"id" db:"id"`
	OwnerID  uuid.UUID `json:"ownerId" db:"owner_id"`
	FileName string    `json:"fileName" db:"file_name"`
}

type Job struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CompanyID uuid.UUID `json:"companyId" db:"company_id"`
	Title     string    `json:"title" db:"title"`
}

type Contact struct {
	UserID uuid.UUID `json:"userId" db:"id"`
	Email  string    `json:"email" db:"email"`
	Name   string    `json:"name" db:"name"`
}
