package dto

import "github.com/nova-ops/account-sweeper/internal/models"

// SweepStatusResponse exposes the most recent sweep report to operators.
type SweepStatusResponse struct {
	Report *models.SweepReport `json:"report"`
}

// TriggerResponse reports the outcome of a manual sweep trigger.
type TriggerResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message,omitempty"`
}
