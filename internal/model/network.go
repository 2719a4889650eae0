package model

import "time"

// Network groups devices that share a site or management domain
type Network struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the network name, falling back to a label built from the ID
func (n Network) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return "Network " + n.ID
}
