package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/martinsuchenak/lifecycled/internal/eol"
	"github.com/martinsuchenak/lifecycled/internal/model"
	"github.com/martinsuchenak/lifecycled/internal/pricing"
	"github.com/martinsuchenak/lifecycled/internal/storage"
)

// mockStorage is a simple in-memory storage for testing
type mockStorage struct {
	mu        sync.Mutex
	devices   map[string]*model.Device
	networks  map[string]*model.Network
	eolDoc    *eol.Document
	eolSource string
	catalog   pricing.Catalog
	fetchedAt time.Time
	forecasts []model.ForecastRun
	pingErr   error
	nextID    int
}

func newMockStorage() *mockStorage {
	return &mockStorage{
		devices:  make(map[string]*model.Device),
		networks: make(map[string]*model.Network),
	}
}

// Device Storage
func (m *mockStorage) ListDevices(filter *model.DeviceFilter) ([]model.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]model.Device, 0, len(m.devices))
	for _, d := range m.devices {
		if filter != nil && filter.NetworkID != "" && d.NetworkID != filter.NetworkID {
			continue
		}
		if filter != nil && filter.Model != "" && !strings.HasPrefix(strings.ToUpper(d.Model), strings.ToUpper(filter.Model)) {
			continue
		}
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Serial < result[j].Serial })
	return result, nil
}

func (m *mockStorage) GetDevice(serial string) (*model.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[strings.ToUpper(serial)]; ok {
		clone := *d
		return &clone, nil
	}
	return nil, storage.ErrDeviceNotFound
}

func (m *mockStorage) SaveDevice(device *model.Device) error {
	if err := device.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = time.Now()
	}
	device.UpdatedAt = time.Now()
	clone := *device
	m.devices[strings.ToUpper(device.Serial)] = &clone
	return nil
}

func (m *mockStorage) SaveDevices(devices []model.Device) (int, error) {
	for i := range devices {
		if err := devices[i].Validate(); err != nil {
			return 0, err
		}
	}
	for i := range devices {
		if err := m.SaveDevice(&devices[i]); err != nil {
			return i, err
		}
	}
	return len(devices), nil
}

func (m *mockStorage) DeleteDevice(serial string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToUpper(serial)
	if _, ok := m.devices[key]; !ok {
		return storage.ErrDeviceNotFound
	}
	delete(m.devices, key)
	return nil
}

// Network Storage
func (m *mockStorage) ListNetworks() ([]model.Network, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]model.Network, 0, len(m.networks))
	for _, n := range m.networks {
		result = append(result, *n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockStorage) GetNetwork(id string) (*model.Network, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.networks[id]; ok {
		clone := *n
		return &clone, nil
	}
	return nil, storage.ErrNetworkNotFound
}

func (m *mockStorage) SaveNetwork(network *model.Network) error {
	if network.ID == "" {
		return storage.ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *network
	m.networks[network.ID] = &clone
	return nil
}

// EOL Storage
func (m *mockStorage) LoadEOLDocument() (*eol.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eolDoc == nil {
		return nil, storage.ErrEOLTableEmpty
	}
	return m.eolDoc, nil
}

func (m *mockStorage) ReplaceEOLDocument(doc *eol.Document, source string) error {
	if doc == nil || len(doc.Records) == 0 {
		return storage.ErrEOLTableEmpty
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eolDoc = doc
	m.eolSource = source
	return nil
}

func (m *mockStorage) EOLInfo() (*storage.EOLInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eolDoc == nil {
		return &storage.EOLInfo{}, nil
	}
	return &storage.EOLInfo{Records: len(m.eolDoc.Records), LastUpdated: m.eolDoc.LastUpdated, Source: m.eolSource}, nil
}

// Forecast Storage
func (m *mockStorage) SaveForecast(run *model.ForecastRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	if run.ID == "" {
		run.ID = fmt.Sprintf("run-%03d", m.nextID)
	}
	m.forecasts = append([]model.ForecastRun{*run}, m.forecasts...)
	return nil
}

func (m *mockStorage) GetForecast(id string) (*model.ForecastRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.forecasts {
		if run.ID == id {
			return &run, nil
		}
	}
	return nil, storage.ErrForecastNotFound
}

func (m *mockStorage) ListForecasts(limit int) ([]model.ForecastRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ForecastRun
	for _, run := range m.forecasts {
		if limit > 0 && len(out) == limit {
			break
		}
		run.Payload = nil
		out = append(out, run)
	}
	return out, nil
}

func (m *mockStorage) PruneForecasts(keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if keep >= len(m.forecasts) {
		return 0, nil
	}
	n := len(m.forecasts) - keep
	m.forecasts = m.forecasts[:keep]
	return n, nil
}

// Price cache
func (m *mockStorage) LoadCatalog(ctx context.Context) (pricing.Catalog, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.catalog == nil {
		return nil, time.Time{}, pricing.ErrCacheMiss
	}
	return m.catalog, m.fetchedAt, nil
}

func (m *mockStorage) StoreCatalog(ctx context.Context, catalog pricing.Catalog, fetchedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog = catalog
	m.fetchedAt = fetchedAt
	return nil
}

func (m *mockStorage) Ping() error {
	return m.pingErr
}

func (m *mockStorage) Close() error {
	return nil
}

var errMockDown = errors.New("database is locked")
