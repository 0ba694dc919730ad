package models

import "time"

// RequestStatus tracks the lifecycle of a student-initiated request.
// PENDING is the only state that admits transitions; APPROVED, REJECTED and
// CANCELLED are terminal.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestApproved  RequestStatus = "APPROVED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestCancelled RequestStatus = "CANCELLED"
)

// RequestType distinguishes the two approval workflows.
type RequestType string

const (
	RequestTypePurchase RequestType = "PURCHASE"
	RequestTypeTransfer RequestType = "TRANSFER"
)

// PurchaseRequest is a student's intent to buy a market item, settled only
// on teacher approval. Price is frozen at submission time.
type PurchaseRequest struct {
	ID              string        `db:"id" json:"id"`
	ClassroomID     string        `db:"classroom_id" json:"classroom_id"`
	StudentID       string        `db:"student_id" json:"student_id"`
	WalletID        string        `db:"wallet_id" json:"wallet_id"`
	ItemID          string        `db:"item_id" json:"item_id"`
	ItemName        string        `db:"item_name" json:"item_name"`
	Price           int64         `db:"price" json:"price"`
	Message         *string       `db:"message" json:"message,omitempty"`
	Status          RequestStatus `db:"status" json:"status"`
	RejectionReason *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReviewedBy      *string       `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time    `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// TransferRequest is a student's intent to send coins to a classmate,
// settled only on teacher approval.
type TransferRequest struct {
	ID              string        `db:"id" json:"id"`
	ClassroomID     string        `db:"classroom_id" json:"classroom_id"`
	FromStudentID   string        `db:"from_student_id" json:"from_student_id"`
	FromWalletID    string        `db:"from_wallet_id" json:"from_wallet_id"`
	ToStudentID     string        `db:"to_student_id" json:"to_student_id"`
	ToWalletID      string        `db:"to_wallet_id" json:"to_wallet_id"`
	Amount          int64         `db:"amount" json:"amount"`
	Message         *string       `db:"message" json:"message,omitempty"`
	Status          RequestStatus `db:"status" json:"status"`
	RejectionReason *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReviewedBy      *string       `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time    `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// RequestFilter narrows request list queries.
type RequestFilter struct {
	ClassroomID string
	StudentID   string
	Status      RequestStatus
	Page        int
	PageSize    int
}
