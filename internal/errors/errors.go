package appErrors

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %s not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrPermanent marks configuration errors that must never be retried:
// unknown step type, missing active project, illegal stage transition,
// unresolvable contact, missing contact channel.
type ErrPermanent struct {
	Reason string
}

func (e *ErrPermanent) Error() string {
	return "permanent: " + e.Reason
}

func NewPermanent(format string, args ...any) error {
	return &ErrPermanent{Reason: fmt.Sprintf(format, args...)}
}

// IsPermanent reports whether err is a configuration error.
func IsPermanent(err error) bool {
	var pe *ErrPermanent
	return errors.As(err, &pe)
}
