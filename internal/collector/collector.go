// Package collector builds inventory records by polling devices over SNMP.
// Chassis entries of the ENTITY-MIB supply the serial, model and firmware.
package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/martinsuchenak/lifecycled/internal/log"
	"github.com/martinsuchenak/lifecycled/internal/model"
	"github.com/martinsuchenak/lifecycled/internal/worker"
)

// SNMP OIDs
const (
	oidSysName                = ".1.3.6.1.2.1.1.5.0"
	oidEntPhysicalClass       = ".1.3.6.1.2.1.47.1.1.1.1.5"
	oidEntPhysicalSoftwareRev = ".1.3.6.1.2.1.47.1.1.1.1.10"
	oidEntPhysicalSerialNum   = ".1.3.6.1.2.1.47.1.1.1.1.11"
	oidEntPhysicalModelName   = ".1.3.6.1.2.1.47.1.1.1.1.13"
)

// entPhysicalClass value for a chassis
const classChassis = 3

// maxHostBits caps CIDR targets at a /20 (IPv4) worth of addresses
const maxHostBits = 12

var (
	ErrNoTargets      = errors.New("no SNMP targets configured")
	ErrSNMPError      = errors.New("SNMP error")
	ErrNoEntityData   = errors.New("no ENTITY-MIB chassis data returned")
	ErrRangeTooLarge  = errors.New("target range too large")
	ErrInvalidVersion = errors.New("unsupported SNMP version")
)

// DeviceStorage is the subset of storage the collector writes to
type DeviceStorage interface {
	SaveDevices(devices []model.Device) (int, error)
}

// Observer is told about every poll
type Observer interface {
	ObservePoll(devices int, err error)
}

// Client is the part of a gosnmp session the collector uses
type Client interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	BulkWalk(rootOid string, walkFn gosnmp.WalkFunc) error
}

// Dialer opens an SNMP session to target. The returned func closes it.
type Dialer func(ctx context.Context, target string, cfg Config) (Client, func() error, error)

// Config holds the polling parameters
type Config struct {
	Targets   []string
	Community string
	Version   string
	Port      uint16
	Timeout   time.Duration
	Retries   int
	Workers   int
	NetworkID string
}

// Result summarizes one collection run
type Result struct {
	Targets  int            `json:"targets"`
	Polled   int            `json:"polled"`
	Failed   int            `json:"failed"`
	Devices  []model.Device `json:"devices"`
	Saved    int            `json:"saved"`
	Duration time.Duration  `json:"duration"`
}

// Collector polls targets and stores what it finds
type Collector struct {
	cfg      Config
	storage  DeviceStorage
	dial     Dialer
	observer Observer
}

// Option configures a Collector
type Option func(*Collector)

// WithDialer replaces the gosnmp dialer
func WithDialer(d Dialer) Option {
	return func(c *Collector) { c.dial = d }
}

// WithObserver reports polls to o
func WithObserver(o Observer) Option {
	return func(c *Collector) { c.observer = o }
}

// New creates a collector. storage may be nil for a dry run.
func New(cfg Config, storage DeviceStorage, opts ...Option) *Collector {
	if cfg.Community == "" {
		cfg.Community = "public"
	}
	if cfg.Version == "" {
		cfg.Version = "2c"
	}
	if cfg.Port == 0 {
		cfg.Port = 161
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	c := &Collector{cfg: cfg, storage: storage, dial: dialSNMP}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect polls every target on a bounded worker pool, then saves the
// devices found. Targets may be hosts or CIDR ranges.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	start := time.Now()
	targets, err := ExpandTargets(c.cfg.Targets)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	log.Info("Starting SNMP inventory collection", "targets", len(targets), "workers", c.cfg.Workers)

	pool := worker.NewWorkerPool(ctx, c.cfg.Workers)
	pool.Start()
	defer pool.Stop()

	var mu sync.Mutex
	found := make(map[string]model.Device)
	jobs := make([]worker.Job, len(targets))
	for i, target := range targets {
		jobs[i] = worker.Job{
			ID: "snmp-" + target,
			Handler: func(ctx context.Context) error {
				devices, err := c.Poll(ctx, target)
				if c.observer != nil {
					c.observer.ObservePoll(len(devices), err)
				}
				if err != nil {
					return err
				}
				mu.Lock()
				for _, d := range devices {
					found[d.Serial] = d
				}
				mu.Unlock()
				return nil
			},
		}
	}

	result := &Result{Targets: len(targets)}
	for i, err := range pool.Run(ctx, jobs) {
		if err != nil {
			result.Failed++
			log.Debug("SNMP poll failed", "target", targets[i], "error", err)
			continue
		}
		result.Polled++
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	serials := make([]string, 0, len(found))
	for s := range found {
		serials = append(serials, s)
	}
	sort.Strings(serials)
	for _, s := range serials {
		result.Devices = append(result.Devices, found[s])
	}

	if c.storage != nil && len(result.Devices) > 0 {
		n, err := c.storage.SaveDevices(result.Devices)
		if err != nil {
			return result, fmt.Errorf("saving collected devices: %w", err)
		}
		result.Saved = n
	}
	result.Duration = time.Since(start)

	log.Info("SNMP inventory collection completed",
		"polled", result.Polled, "failed", result.Failed, "devices", len(result.Devices), "duration", result.Duration)
	return result, nil
}

// Poll reads the chassis entities of one target
func (c *Collector) Poll(ctx context.Context, target string) ([]model.Device, error) {
	client, closeFn, err := c.dial(ctx, target, c.cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", target, err)
	}
	defer closeFn()

	sysName, err := querySysName(client)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", target, err)
	}
	if sysName == "" {
		sysName = target
	}

	entities := make(map[string]*entity)
	columns := []struct {
		oid string
		set func(*entity, gosnmp.SnmpPDU)
	}{
		{oidEntPhysicalClass, func(e *entity, v gosnmp.SnmpPDU) { e.class = intValue(v) }},
		{oidEntPhysicalSerialNum, func(e *entity, v gosnmp.SnmpPDU) { e.serial = stringValue(v) }},
		{oidEntPhysicalModelName, func(e *entity, v gosnmp.SnmpPDU) { e.model = stringValue(v) }},
		{oidEntPhysicalSoftwareRev, func(e *entity, v gosnmp.SnmpPDU) { e.software = stringValue(v) }},
	}
	for _, col := range columns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := client.BulkWalk(col.oid, func(pdu gosnmp.SnmpPDU) error {
			if pdu.Type == gosnmp.NoSuchObject || pdu.Type == gosnmp.NoSuchInstance || pdu.Type == gosnmp.EndOfMibView {
				return nil
			}
			index := strings.TrimPrefix(strings.TrimPrefix(pdu.Name, col.oid), ".")
			e, ok := entities[index]
			if !ok {
				e = &entity{index: index, class: -1}
				entities[index] = e
			}
			col.set(e, pdu)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s on %s: %w", col.oid, target, err)
		}
	}

	devices := chassisDevices(entities, sysName, c.cfg.NetworkID)
	if len(devices) == 0 {
		return nil, ErrNoEntityData
	}
	log.Debug("Polled device", "target", target, "name", sysName, "chassis", len(devices))
	return devices, nil
}

type entity struct {
	index    string
	class    int
	serial   string
	model    string
	software string
}

// chassisDevices turns chassis entities into inventory records. Agents that
// do not report entPhysicalClass contribute every entity with a serial and
// model. Stack members after the first get the entity index in their name.
func chassisDevices(entities map[string]*entity, sysName, networkID string) []model.Device {
	hasClass := false
	for _, e := range entities {
		if e.class >= 0 {
			hasClass = true
			break
		}
	}

	var picked []*entity
	for _, e := range entities {
		if hasClass && e.class != classChassis {
			continue
		}
		if strings.TrimSpace(e.serial) == "" || strings.TrimSpace(e.model) == "" {
			continue
		}
		picked = append(picked, e)
	}
	sort.Slice(picked, func(i, j int) bool { return indexLess(picked[i].index, picked[j].index) })

	devices := make([]model.Device, 0, len(picked))
	for i, e := range picked {
		name := sysName
		if i > 0 {
			name = sysName + "/" + e.index
		}
		devices = append(devices, model.Device{
			Serial:    strings.TrimSpace(e.serial),
			Name:      name,
			Model:     strings.TrimSpace(e.model),
			Firmware:  strings.TrimSpace(e.software),
			NetworkID: networkID,
		})
	}
	return devices
}

// indexLess orders numeric entity indexes numerically
func indexLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func querySysName(client Client) (string, error) {
	result, err := client.Get([]string{oidSysName})
	if err != nil {
		return "", err
	}
	if result.Error != gosnmp.NoError {
		return "", fmt.Errorf("%w %s", ErrSNMPError, result.Error)
	}
	for _, v := range result.Variables {
		if v.Name == oidSysName {
			return stringValue(v), nil
		}
	}
	return "", nil
}

func stringValue(v gosnmp.SnmpPDU) string {
	if v.Type != gosnmp.OctetString {
		return ""
	}
	b, ok := v.Value.([]byte)
	if !ok {
		return ""
	}
	return string(b)
}

func intValue(v gosnmp.SnmpPDU) int {
	if v.Type != gosnmp.Integer {
		return -1
	}
	return int(gosnmp.ToBigInt(v.Value).Int64())
}

// dialSNMP opens a gosnmp session
func dialSNMP(ctx context.Context, target string, cfg Config) (Client, func() error, error) {
	version, err := snmpVersion(cfg.Version)
	if err != nil {
		return nil, nil, err
	}
	client := &gosnmp.GoSNMP{
		Context:   ctx,
		Target:    target,
		Port:      cfg.Port,
		Community: cfg.Community,
		Version:   version,
		Timeout:   cfg.Timeout,
		Retries:   cfg.Retries,
		MaxOids:   gosnmp.MaxOids,
	}
	if err := client.Connect(); err != nil {
		return nil, nil, err
	}
	return client, client.Conn.Close, nil
}

func snmpVersion(v string) (gosnmp.SnmpVersion, error) {
	switch strings.ToLower(strings.TrimPrefix(v, "v")) {
	case "1":
		return gosnmp.Version1, nil
	case "2c", "2", "":
		return gosnmp.Version2c, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidVersion, v)
	}
}

// ExpandTargets turns hosts and CIDR ranges into a deduplicated host list
func ExpandTargets(targets []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		hosts := []string{t}
		if strings.Contains(t, "/") {
			var err error
			hosts, err = generateIPList(t)
			if err != nil {
				return nil, fmt.Errorf("parsing target %s: %w", t, err)
			}
		}
		for _, h := range hosts {
			if !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
	}
	return out, nil
}

// generateIPList generates the host addresses of a CIDR range
func generateIPList(cidr string) ([]string, error) {
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}
	ones, bits := ipNet.Mask.Size()
	if bits-ones > maxHostBits {
		return nil, fmt.Errorf("%w: %s", ErrRangeTooLarge, cidr)
	}

	broadcast := make(net.IP, len(ipNet.IP))
	copy(broadcast, ipNet.IP)
	for i := range ipNet.Mask {
		broadcast[i] |= ^ipNet.Mask[i]
	}

	var ips []string
	for ip := cloneIP(ipNet.IP.Mask(ipNet.Mask)); ipNet.Contains(ip); inc(ip) {
		// Network and broadcast addresses only exist for /30 and larger
		if bits-ones >= 2 && (ip.Equal(ipNet.IP) || ip.Equal(broadcast)) {
			continue
		}
		ips = append(ips, ip.String())
	}
	return ips, nil
}

func cloneIP(ip net.IP) net.IP {
	out := make(net.IP, len(ip))
	copy(out, ip)
	return out
}

// inc increments an IP address
func inc(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}
