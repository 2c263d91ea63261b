package model

import "time"

// Cursor is the opaque pagination token returned by the source. Empty means no next page.
type Cursor string

// IsZero reports whether the cursor ends the sequence.
func (c Cursor) IsZero() bool {
	return c == ""
}

// ListPageRequest is one page fetch against the source.
type ListPageRequest struct {
	Properties []string
	Limit      int
	After      Cursor
	Archived   bool
}

// SourceItem is a raw deal object as returned by the source.
type SourceItem struct {
	ID         string
	Properties map[string]any
	Archived   bool
	CreatedAt  *time.Time
	UpdatedAt  *time.Time
}

// SourcePage is one page of items plus the cursor of the following page.
type SourcePage struct {
	Items []SourceItem
	Next  Cursor
	// Total is the source-reported total item count when the source provides one.
	Total *int
}

// AssociationPageRequest is one page fetch of an item's associations of a single kind.
type AssociationPageRequest struct {
	ItemID string
	Kind   string
	Limit  int
	After  Cursor
}

// AssociationPage holds associated object ids and the cursor of the following page.
type AssociationPage struct {
	IDs  []string
	Next Cursor
}

// SourceAccount describes the account a credential belongs to.
type SourceAccount struct {
	PortalID            string
	AccountType         string
	TimeZone            string
	CompanyCurrency     string
	DataHostingLocation string
}
