package storage

import (
	"errors"
	"time"

	"github.com/martinsuchenak/lifecycled/internal/eol"
	"github.com/martinsuchenak/lifecycled/internal/model"
	"github.com/martinsuchenak/lifecycled/internal/pricing"
)

var (
	ErrDeviceNotFound   = errors.New("device not found")
	ErrNetworkNotFound  = errors.New("network not found")
	ErrForecastNotFound = errors.New("forecast not found")
	ErrInvalidID        = errors.New("invalid id")
	ErrEOLTableEmpty    = errors.New("no EOL table loaded")
)

// DeviceStorage persists the device inventory
type DeviceStorage interface {
	ListDevices(filter *model.DeviceFilter) ([]model.Device, error)
	GetDevice(serial string) (*model.Device, error)
	SaveDevice(device *model.Device) error
	SaveDevices(devices []model.Device) (int, error)
	DeleteDevice(serial string) error
}

// NetworkStorage persists network names
type NetworkStorage interface {
	ListNetworks() ([]model.Network, error)
	GetNetwork(id string) (*model.Network, error)
	SaveNetwork(network *model.Network) error
}

// EOLStorage persists the vendor end-of-life table
type EOLStorage interface {
	LoadEOLDocument() (*eol.Document, error)
	ReplaceEOLDocument(doc *eol.Document, source string) error
	EOLInfo() (*EOLInfo, error)
}

// EOLInfo describes the stored end-of-life table
type EOLInfo struct {
	Records     int       `json:"records"`
	LastUpdated string    `json:"last_updated,omitempty"`
	Source      string    `json:"source,omitempty"`
	LoadedAt    time.Time `json:"loaded_at,omitzero"`
}

// ForecastStorage persists planning runs
type ForecastStorage interface {
	SaveForecast(run *model.ForecastRun) error
	GetForecast(id string) (*model.ForecastRun, error)
	ListForecasts(limit int) ([]model.ForecastRun, error)
	PruneForecasts(keep int) (int, error)
}

// Storage is everything the service layer needs
type Storage interface {
	DeviceStorage
	NetworkStorage
	EOLStorage
	ForecastStorage
	pricing.Cache
	Ping() error
	Close() error
}
