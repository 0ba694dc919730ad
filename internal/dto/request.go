package dto

// SubmitPurchaseRequest payload for a student purchase request.
type SubmitPurchaseRequest struct {
	ItemID  string  `json:"item_id" validate:"required"`
	Message *string `json:"message" validate:"omitempty,max=200"`
}

// SubmitTransferRequest payload for a student transfer request.
type SubmitTransferRequest struct {
	ToStudentID string  `json:"to_student_id" validate:"required"`
	Amount      int64   `json:"amount" validate:"required,gt=0"`
	Message     *string `json:"message" validate:"omitempty,max=200"`
}

// RejectRequest carries the teacher's rejection reason.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=200"`
}
