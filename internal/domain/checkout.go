package domain

// CheckoutRequest starts a hosted checkout for the workshop
type CheckoutRequest struct {
	PriceID    string `json:"price_id" validate:"required"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
	Mode       string `json:"mode" validate:"omitempty,oneof=payment subscription"`
	FullName   string `json:"full_name" validate:"required"`
}
