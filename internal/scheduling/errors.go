package scheduling

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError rejects malformed booking requests before any write.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// IsValidationError checks if the error is a ValidationError.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// QuotaExceededError rejects a specialized booking over the daily cap.
type QuotaExceededError struct {
	SlotType string
	Day      time.Time
	Limit    int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily %s limit of %d reached for %s",
		e.SlotType, e.Limit, e.Day.Format("2006-01-02"))
}

// IsQuotaExceeded checks if the error is a QuotaExceededError.
func IsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// TravelConflictError rejects a booking that leaves too little travel time
// to or from an adjacent appointment for a shared crew member.
type TravelConflictError struct {
	AdjacentTitle    string
	RequiredMinutes  int
	AvailableMinutes int
}

func (e *TravelConflictError) Error() string {
	return fmt.Sprintf("not enough travel time around %q: need %d minutes, have %d",
		e.AdjacentTitle, e.RequiredMinutes, e.AvailableMinutes)
}

// IsTravelConflict checks if the error is a TravelConflictError.
func IsTravelConflict(err error) (*TravelConflictError, bool) {
	var te *TravelConflictError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
