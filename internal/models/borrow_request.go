package models

import "time"

// BorrowStatus defines lifecycle states for borrow requests.
type BorrowStatus string

const (
	// BorrowStatusPending indicates the request is awaiting review.
	BorrowStatusPending BorrowStatus = "pending"
	// BorrowStatusApproved indicates the asset has been lent out.
	BorrowStatusApproved BorrowStatus = "approved"
	// BorrowStatusRejected indicates the request was denied.
	BorrowStatusRejected BorrowStatus = "rejected"
	// BorrowStatusReturned indicates the asset came back.
	BorrowStatusReturned BorrowStatus = "returned"
)

// Valid reports whether s is a known borrow status.
func (s BorrowStatus) Valid() bool {
	switch s {
	case BorrowStatusPending, BorrowStatusApproved, BorrowStatusRejected, BorrowStatusReturned:
		return true
	}
	return false
}

// Open reports whether a request in this state still claims its asset.
func (s BorrowStatus) Open() bool {
	return s == BorrowStatusPending || s == BorrowStatusApproved
}

// Terminal reports whether no further transition is possible from s.
func (s BorrowStatus) Terminal() bool {
	return s == BorrowStatusRejected || s == BorrowStatusReturned
}

// BorrowRequest is an application to borrow a single asset.
type BorrowRequest struct {
	ID                 uint         `gorm:"primaryKey" json:"id"`
	AssetID            uint         `gorm:"not null;index" json:"asset_id"`
	Asset              *Asset       `gorm:"foreignKey:AssetID;constraint:OnDelete:RESTRICT" json:"asset,omitempty"`
	BorrowerID         string       `gorm:"size:64;not null;index" json:"borrower_id"`
	BorrowerName       string       `gorm:"size:255;not null" json:"borrower_name"`
	BorrowerDepartment string       `gorm:"size:255;not null" json:"borrower_department"`
	BorrowerContact    string       `gorm:"size:255;not null" json:"borrower_contact"`
	BorrowerEmail      string       `gorm:"size:255;not null" json:"borrower_email"`
	Purpose            string       `gorm:"type:text;not null" json:"purpose"`
	Notes              string       `gorm:"type:text" json:"notes"`
	RequestedDate      Date         `gorm:"not null" json:"requested_date"`
	ExpectedReturnDate Date         `gorm:"not null" json:"expected_return_date"`
	ActualReturnDate   *Date        `json:"actual_return_date"`
	Status             BorrowStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	RejectionReason    string       `gorm:"type:text" json:"rejection_reason"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// BorrowStats counts borrow requests per lifecycle state.
type BorrowStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Returned int64 `json:"returned"`
}

// LendingEvent is published after a lifecycle transition commits.
type LendingEvent struct {
	Type          string       `json:"type"`
	RequestID     uint         `json:"request_id"`
	BorrowerID    string       `json:"borrower_id"`
	SerialNumber  string       `json:"serial_number"`
	Status        BorrowStatus `json:"status"`
	AssetStatus   AssetStatus  `json:"asset_status"`
	Department    string       `json:"department"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	OccurredAt    time.Time    `json:"occurred_at"`
}

// Lending event types.
const (
	EventBorrowCreated  = "borrow.created"
	EventBorrowApproved = "borrow.approved"
	EventBorrowRejected = "borrow.rejected"
	EventBorrowReturned = "borrow.returned"
	EventBorrowUpdated  = "borrow.updated"
	EventBorrowDeleted  = "borrow.deleted"
	EventAssetStatus    = "asset.status_changed"
)
