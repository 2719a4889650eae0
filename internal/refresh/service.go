// Package refresh wires the inventory store to the planning core. Every
// outer surface (CLI, HTTP, MCP, scheduler) goes through a Service.
package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/martinsuchenak/lifecycled/internal/eol"
	"github.com/martinsuchenak/lifecycled/internal/lifecycle"
	"github.com/martinsuchenak/lifecycled/internal/log"
	"github.com/martinsuchenak/lifecycled/internal/model"
	"github.com/martinsuchenak/lifecycled/internal/planner"
	"github.com/martinsuchenak/lifecycled/internal/pricing"
	"github.com/martinsuchenak/lifecycled/internal/replacement"
	"github.com/martinsuchenak/lifecycled/internal/storage"
)

// DefaultPriceTTL is how long a stored price catalog is considered fresh
const DefaultPriceTTL = 7 * 24 * time.Hour

// adhocSerial stands in for the serial of models assessed outside the inventory
const adhocSerial = "adhoc"

// Options tune planning. Zero values select the defaults.
type Options struct {
	ForecastYears      int
	WavesPerYear       int
	PlanningWindowDays int
	LicenseType        string
	PriceTTL           time.Duration
	KeepForecasts      int
	Today              time.Time
	Rules              *replacement.Rules
	Now                func() time.Time
}

func (o Options) withDefaults() Options {
	if o.ForecastYears <= 0 {
		o.ForecastYears = planner.DefaultForecastYears
	}
	if o.WavesPerYear <= 0 {
		o.WavesPerYear = planner.DefaultWavesPerYear
	}
	if o.LicenseType == "" {
		o.LicenseType = pricing.DefaultLicenseType
	}
	if o.PriceTTL == 0 {
		o.PriceTTL = DefaultPriceTTL
	}
	if o.Rules == nil {
		o.Rules = replacement.DefaultRules()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Service computes assessments and forecasts over stored inventory
type Service struct {
	store storage.Storage
	opts  Options

	mu     sync.RWMutex
	latest *planner.Report
}

// NewService creates a service over store
func NewService(store storage.Storage, opts Options) *Service {
	return &Service{store: store, opts: opts.withDefaults()}
}

// Store returns the backing storage
func (s *Service) Store() storage.Storage {
	return s.store
}

// Options returns the effective options
func (s *Service) Options() Options {
	return s.opts
}

// Today is the planning day: the configured override, else the current date
func (s *Service) Today() time.Time {
	if !s.opts.Today.IsZero() {
		return lifecycle.Truncate(s.opts.Today)
	}
	return lifecycle.Truncate(s.opts.Now())
}

// Table returns the stored EOL table, or the built-in one when none is loaded
func (s *Service) Table() (*eol.Table, error) {
	doc, err := s.store.LoadEOLDocument()
	if errors.Is(err, storage.ErrEOLTableEmpty) {
		return eol.DefaultTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading EOL table: %w", err)
	}
	return eol.NewTable(doc.Records), nil
}

// Catalog returns the active price catalog and where it came from
func (s *Service) Catalog(ctx context.Context) (pricing.Catalog, pricing.CatalogState, error) {
	catalog, state, err := pricing.LoadCatalog(ctx, s.store, s.opts.Now(), s.opts.PriceTTL)
	if err != nil {
		return nil, state, fmt.Errorf("loading price catalog: %w", err)
	}
	if state.Stale {
		log.Warn("Price catalog is stale", "fetched_at", state.FetchedAt)
	}
	return catalog, state, nil
}

// Analyzer builds an analyzer from the stored EOL table and price catalog
func (s *Service) Analyzer(ctx context.Context) (*planner.Analyzer, error) {
	table, err := s.Table()
	if err != nil {
		return nil, err
	}
	catalog, _, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	advisor := replacement.NewAdvisor(s.opts.Rules, replacement.WithPlanningWindow(s.opts.PlanningWindowDays))
	return planner.NewAnalyzer(table, advisor, pricing.NewEstimator(catalog),
		planner.WithLicenseType(s.opts.LicenseType)), nil
}

// Resolution is the answer to an ad-hoc EOL lookup
type Resolution struct {
	Query        string           `json:"query"`
	Found        bool             `json:"found"`
	Key          string           `json:"key,omitempty"`
	Rule         eol.Rule         `json:"rule,omitempty"`
	Record       *model.EOLRecord `json:"eol,omitempty"`
	DaysToEOL    *int             `json:"days_to_eol,omitempty"`
	Status       lifecycle.Status `json:"lifecycle_status"`
	Family       model.Family     `json:"family"`
	EndOfSupport *time.Time       `json:"end_of_support,omitempty"`
}

// Resolve looks a model up in the active EOL table
func (s *Service) Resolve(modelName string) (*Resolution, error) {
	table, err := s.Table()
	if err != nil {
		return nil, err
	}
	today := s.Today()
	res := &Resolution{Query: modelName, Family: eol.FamilyOf(modelName)}
	m, ok := table.Resolve(modelName)
	if ok {
		rec := m.Record
		res.Found = true
		res.Key = m.Key
		res.Rule = m.Rule
		res.Record = &rec
		res.EndOfSupport = eol.EndOfSupport(&rec)
	}
	res.DaysToEOL = lifecycle.DaysPtr(res.EndOfSupport, today)
	res.Status = lifecycle.Classify(res.DaysToEOL)
	return res, nil
}

// AssessModel assesses a model that need not be in the inventory
func (s *Service) AssessModel(ctx context.Context, modelName string, usage *model.Usage) (planner.Assessment, error) {
	analyzer, err := s.Analyzer(ctx)
	if err != nil {
		return planner.Assessment{}, err
	}
	return analyzer.Assess(model.Device{Serial: adhocSerial, Model: modelName, Usage: usage}, s.Today())
}

// Assess assesses one stored device
func (s *Service) Assess(ctx context.Context, serial string) (planner.Assessment, error) {
	device, err := s.store.GetDevice(serial)
	if err != nil {
		return planner.Assessment{}, err
	}
	analyzer, err := s.Analyzer(ctx)
	if err != nil {
		return planner.Assessment{}, err
	}
	return analyzer.Assess(*device, s.Today())
}

// AssessAll assesses every stored device matching filter
func (s *Service) AssessAll(ctx context.Context, filter *model.DeviceFilter) ([]planner.Assessment, error) {
	devices, err := s.store.ListDevices(filter)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	analyzer, err := s.Analyzer(ctx)
	if err != nil {
		return nil, err
	}
	return analyzer.AssessAll(devices, s.Today())
}

// Forecast plans the whole inventory. Non-positive years or perYear select
// the configured defaults.
func (s *Service) Forecast(ctx context.Context, years, perYear int) (*planner.Report, error) {
	if years <= 0 {
		years = s.opts.ForecastYears
	}
	if perYear <= 0 {
		perYear = s.opts.WavesPerYear
	}

	devices, err := s.store.ListDevices(nil)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	networks, err := s.store.ListNetworks()
	if err != nil {
		return nil, fmt.Errorf("listing networks: %w", err)
	}
	analyzer, err := s.Analyzer(ctx)
	if err != nil {
		return nil, err
	}

	today := s.Today()
	assessments, err := analyzer.AssessAll(devices, today)
	if err != nil {
		return nil, err
	}
	report, err := planner.BuildReport(assessments, networks, analyzer.Estimator().Catalog(), today, years, perYear)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.latest = report
	s.mu.Unlock()
	return report, nil
}

// Latest returns the most recently computed report, if any
func (s *Service) Latest() *planner.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Snapshot computes a forecast with the default horizon and stores it. Older
// runs beyond KeepForecasts are pruned.
func (s *Service) Snapshot(ctx context.Context) (*model.ForecastRun, error) {
	report, err := s.Forecast(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encoding forecast: %w", err)
	}

	run := &model.ForecastRun{
		GeneratedAt:   s.opts.Now(),
		Today:         report.Today,
		ForecastYears: report.ForecastYears,
		WavesPerYear:  report.WavesPerYear,
		DeviceCount:   report.DeviceCount,
		TotalCost:     report.TotalCost,
		Payload:       payload,
	}
	if err := s.store.SaveForecast(run); err != nil {
		return nil, fmt.Errorf("saving forecast: %w", err)
	}
	log.Info("Forecast snapshot stored", "id", run.ID, "devices", run.DeviceCount, "total_cost", run.TotalCost)

	if s.opts.KeepForecasts > 0 {
		n, err := s.store.PruneForecasts(s.opts.KeepForecasts)
		if err != nil {
			return run, fmt.Errorf("pruning forecasts: %w", err)
		}
		if n > 0 {
			log.Debug("Pruned forecast runs", "count", n)
		}
	}
	return run, nil
}

// Inventory is the import document: either this envelope or a bare device array
type Inventory struct {
	Devices  []model.Device  `json:"devices"`
	Networks []model.Network `json:"networks,omitempty"`
}

// ImportResult counts what an import stored
type ImportResult struct {
	Devices  int `json:"devices"`
	Networks int `json:"networks"`
}

// DecodeInventory parses an inventory document
func DecodeInventory(r io.Reader) (*Inventory, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading inventory: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var devices []model.Device
		if err := json.Unmarshal(data, &devices); err != nil {
			return nil, fmt.Errorf("decoding inventory: %w", err)
		}
		return &Inventory{Devices: devices}, nil
	}
	var inv Inventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("decoding inventory: %w", err)
	}
	return &inv, nil
}

// ImportInventory stores the networks and devices of an inventory document.
// Devices are all-or-nothing: one invalid record rejects the batch.
func (s *Service) ImportInventory(r io.Reader) (ImportResult, error) {
	inv, err := DecodeInventory(r)
	if err != nil {
		return ImportResult{}, err
	}

	var result ImportResult
	for i := range inv.Networks {
		if strings.TrimSpace(inv.Networks[i].ID) == "" {
			continue
		}
		if err := s.store.SaveNetwork(&inv.Networks[i]); err != nil {
			return result, fmt.Errorf("saving network %s: %w", inv.Networks[i].ID, err)
		}
		result.Networks++
	}

	n, err := s.store.SaveDevices(inv.Devices)
	if err != nil {
		return result, err
	}
	result.Devices = n
	log.Info("Inventory imported", "devices", result.Devices, "networks", result.Networks)
	return result, nil
}

// EOLDocument returns the stored EOL document, or the built-in one
func (s *Service) EOLDocument() (*eol.Document, error) {
	doc, err := s.store.LoadEOLDocument()
	if errors.Is(err, storage.ErrEOLTableEmpty) {
		table := eol.DefaultTable()
		return &eol.Document{LastUpdated: eol.DefaultLastUpdated(), Records: table.Records()}, nil
	}
	return doc, err
}

// LoadEOL replaces the stored EOL table with the document read from r
func (s *Service) LoadEOL(r io.Reader, source string) (int, error) {
	doc, err := eol.ReadDocument(r)
	if err != nil {
		return 0, err
	}
	if err := s.store.ReplaceEOLDocument(doc, source); err != nil {
		return 0, err
	}
	log.Info("EOL table loaded", "records", len(doc.Records), "source", source, "last_updated", doc.LastUpdated)
	return len(doc.Records), nil
}

// LoadPrices replaces the cached price catalog with the family -> model ->
// price document read from r
func (s *Service) LoadPrices(ctx context.Context, r io.Reader) (int, error) {
	catalog, err := pricing.ReadCatalog(r)
	if err != nil {
		return 0, err
	}
	if err := s.store.StoreCatalog(ctx, catalog, s.opts.Now()); err != nil {
		return 0, err
	}
	log.Info("Price catalog loaded", "models", catalog.Len())
	return catalog.Len(), nil
}
