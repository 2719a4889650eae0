package model

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidDeviceRecord is returned when an inventory record cannot be planned at all
var ErrInvalidDeviceRecord = errors.New("invalid device record")

// Device represents one inventory record as delivered by the inventory source
type Device struct {
	Serial    string    `json:"serial"`
	Name      string    `json:"name,omitempty"`
	Model     string    `json:"model"`
	Firmware  string    `json:"firmware,omitempty"`
	NetworkID string    `json:"network_id,omitempty"`
	Usage     *Usage    `json:"usage,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Usage holds optional load hints that may raise the replacement tier
type Usage struct {
	ThroughputMbps  int `json:"throughput_mbps,omitempty"`
	ClientCount     int `json:"client_count,omitempty"`
	WirelessClients int `json:"wireless_clients,omitempty"`
}

// Validate rejects records that are missing the fields every stage depends on
func (d *Device) Validate() error {
	if strings.TrimSpace(d.Serial) == "" {
		return errors.Join(ErrInvalidDeviceRecord, errors.New("serial is required"))
	}
	if strings.TrimSpace(d.Model) == "" {
		return errors.Join(ErrInvalidDeviceRecord, errors.New("model is required for "+d.Serial))
	}
	return nil
}

// DeviceFilter holds filter criteria for listing devices
type DeviceFilter struct {
	NetworkID string // Filter by network
	Model     string // Filter by model prefix (case-insensitive)
}
