package model

import "time"

// Target is a URL registered for compliance scanning.
type Target struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId,omitempty"`
	OwnerID   string `json:"ownerId"`
	Name      string `json:"name,omitempty"`
	URL       string `json:"url"`

	LastStatus  ScanStatus `json:"lastStatus,omitempty"`
	LastScanned *time.Time `json:"lastScanned,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
