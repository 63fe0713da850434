package storage

import "time"

// DocumentRecord is a row in the documents table.
type DocumentRecord struct {
	ID        string
	OwnerID   string
	Title     string
	Content   string
	Version   int
	UpdatedAt time.Time
}
