package request

type CreateReservationRequest struct {
	CheckIn    string `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut   string `json:"check_out" validate:"required,datetime=2006-01-02"`
	GuestCount int    `json:"guest_count" validate:"required,min=1,max=4"`
}

type ModifyReservationRequest struct {
	CheckIn  string `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut string `json:"check_out" validate:"required,datetime=2006-01-02"`
}

type CancelReservationRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}
