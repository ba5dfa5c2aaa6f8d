package domain

import "time"

// Organization is the tenant root. It owns Deals and holds no processing
// state of its own.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Deal is a workspace within an Organization and the isolation unit for
// every derived artifact and every knowledge-graph namespace.
type Deal struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}

// GroupID returns the composite tenant+deal namespace used to scope every
// graph read and write. This implementation standardizes on the
// colon-separated form and never emits an underscore-separated variant.
func GroupID(organizationID, dealID string) string {
	return organizationID + ":" + dealID
}
