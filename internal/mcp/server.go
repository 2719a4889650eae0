package mcp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/martinsuchenak/lifecycled/internal/lifecycle"
	"github.com/martinsuchenak/lifecycled/internal/log"
	"github.com/martinsuchenak/lifecycled/internal/model"
	"github.com/martinsuchenak/lifecycled/internal/planner"
	"github.com/martinsuchenak/lifecycled/internal/refresh"
	"github.com/martinsuchenak/lifecycled/internal/storage"
	"github.com/paularlott/mcp"
)

const serverVersion = "1.0.0"

// Server exposes lifecycle planning as MCP tools
type Server struct {
	mcpServer   *mcp.Server
	service     *refresh.Service
	bearerToken string
}

// NewServer creates a new MCP server over the planning service
func NewServer(service *refresh.Service, bearerToken string) *Server {
	s := &Server{
		mcpServer:   mcp.NewServer("lifecycled", serverVersion),
		service:     service,
		bearerToken: bearerToken,
	}
	s.registerTools()
	return s
}

// registerTools registers all planning tools
func (s *Server) registerTools() {
	s.mcpServer.RegisterTool(
		mcp.NewTool("eol_resolve", "Look a model up in the EOL table and report its end of support date and lifecycle status",
			mcp.String("model", "Model name, e.g. MS220-8P", mcp.Required()),
		),
		s.handleEOLResolve,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("device_list", "List inventory devices, optionally filtered by network or model prefix",
			mcp.String("network_id", "Only devices in this network"),
			mcp.String("model", "Only models starting with this prefix"),
		),
		s.handleDeviceList,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("device_assess", "Assess one inventory device: lifecycle status, risk, replacement and cost",
			mcp.String("serial", "Device serial", mcp.Required()),
		),
		s.handleDeviceAssess,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("replacement_recommend", "Recommend a replacement for a model that is not in the inventory",
			mcp.String("model", "Model name", mcp.Required()),
			mcp.Number("throughput_mbps", "Observed throughput in Mbps"),
			mcp.Number("client_count", "Number of clients behind the device"),
			mcp.Number("wireless_clients", "Number of wireless clients"),
		),
		s.handleReplacementRecommend,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("refresh_forecast", "Plan replacements into refresh waves and summarize cost per wave",
			mcp.Number("years", "Forecast horizon in years, at most 10 (default from server configuration)"),
			mcp.Number("waves", "Waves per year: 1, 2, 3, 4, 6 or 12 (default from server configuration)"),
		),
		s.handleRefreshForecast,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("risk_summary", "Summarize the inventory by risk category and lifecycle status"),
		s.handleRiskSummary,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("network_summary", "Summarize risk and replacement cost per network",
			mcp.String("network_id", "Only this network"),
		),
		s.handleNetworkSummary,
	)
}

// HandleRequest handles MCP HTTP requests with optional bearer token authentication
func (s *Server) HandleRequest(w http.ResponseWriter, r *http.Request) {
	log.Debug("MCP request received", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)

	if s.bearerToken != "" {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			log.Warn("MCP request missing Authorization header", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Missing Authorization header", http.StatusUnauthorized)
			return
		}
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			log.Warn("MCP request invalid Authorization format", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid Authorization format", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.bearerToken)) != 1 {
			log.Warn("MCP request invalid token", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
	}

	s.mcpServer.HandleRequest(w, r)
}

func (s *Server) handleEOLResolve(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	name, err := req.String("model")
	if err != nil || strings.TrimSpace(name) == "" {
		return nil, mcp.NewToolErrorInvalidParams("model is required")
	}

	res, err := s.service.Resolve(name)
	if err != nil {
		log.Error("MCP EOL resolve failed", "error", err, "model", name)
		return nil, mcp.NewToolErrorInternal("failed to resolve model: " + err.Error())
	}
	return mcp.NewToolResponseText(formatResolution(res)), nil
}

func (s *Server) handleDeviceList(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	filter := &model.DeviceFilter{
		NetworkID: req.StringOr("network_id", ""),
		Model:     req.StringOr("model", ""),
	}
	devices, err := s.service.Store().ListDevices(filter)
	if err != nil {
		log.Error("MCP device list failed", "error", err)
		return nil, mcp.NewToolErrorInternal("failed to list devices: " + err.Error())
	}
	if len(devices) == 0 {
		return mcp.NewToolResponseText("No devices found"), nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Found %d devices:\n", len(devices))
	for _, d := range devices {
		fmt.Fprintf(&result, "- %s %s", d.Serial, d.Model)
		if d.NetworkID != "" {
			fmt.Fprintf(&result, " (network %s)", d.NetworkID)
		}
		result.WriteString("\n")
	}
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleDeviceAssess(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	serial, err := req.String("serial")
	if err != nil || strings.TrimSpace(serial) == "" {
		return nil, mcp.NewToolErrorInvalidParams("serial is required")
	}

	a, err := s.service.Assess(ctx, serial)
	if err != nil {
		if errors.Is(err, storage.ErrDeviceNotFound) {
			return nil, mcp.NewToolErrorInvalidParams("device not found: " + serial)
		}
		log.Error("MCP device assess failed", "error", err, "serial", serial)
		return nil, mcp.NewToolErrorInternal("failed to assess device: " + err.Error())
	}
	return mcp.NewToolResponseText(formatAssessment(a)), nil
}

func (s *Server) handleReplacementRecommend(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	name, err := req.String("model")
	if err != nil || strings.TrimSpace(name) == "" {
		return nil, mcp.NewToolErrorInvalidParams("model is required")
	}

	var usage model.Usage
	for key, dst := range map[string]*int{
		"throughput_mbps":  &usage.ThroughputMbps,
		"client_count":     &usage.ClientCount,
		"wireless_clients": &usage.WirelessClients,
	} {
		if *dst, err = intParam(req, key); err != nil {
			return nil, mcp.NewToolErrorInvalidParams(err.Error())
		}
	}
	var hints *model.Usage
	if usage != (model.Usage{}) {
		hints = &usage
	}

	a, err := s.service.AssessModel(ctx, name, hints)
	if err != nil {
		log.Error("MCP replacement recommend failed", "error", err, "model", name)
		return nil, mcp.NewToolErrorInternal("failed to assess model: " + err.Error())
	}
	return mcp.NewToolResponseText(formatAssessment(a)), nil
}

func (s *Server) handleRefreshForecast(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	years, err := intParam(req, "years")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams(err.Error())
	}
	waves, err := intParam(req, "waves")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams(err.Error())
	}

	report, err := s.service.Forecast(ctx, years, waves)
	if err != nil {
		if errors.Is(err, planner.ErrInvalidHorizon) {
			return nil, mcp.NewToolErrorInvalidParams(err.Error())
		}
		log.Error("MCP forecast failed", "error", err)
		return nil, mcp.NewToolErrorInternal("failed to build forecast: " + err.Error())
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Refresh forecast from %s: %d of %d devices planned, total %s\n",
		report.Today.Format("2006-01-02"), report.Planned, report.DeviceCount, planner.FormatMoney(report.TotalCost))
	for _, w := range report.Waves {
		fmt.Fprintf(&result, "- %s (%s to %s): %d devices, %s, risk %s\n",
			w.Name, w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"),
			w.DeviceCount, planner.FormatMoney(w.TotalCost), w.RiskLevel)
	}
	if len(report.PriceMisses) > 0 {
		fmt.Fprintf(&result, "%d replacement models are priced by estimate\n", len(report.PriceMisses))
	}
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleRiskSummary(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	report, err := s.service.Forecast(ctx, 0, 0)
	if err != nil {
		log.Error("MCP risk summary failed", "error", err)
		return nil, mcp.NewToolErrorInternal("failed to build report: " + err.Error())
	}

	var result strings.Builder
	fmt.Fprintf(&result, "%d devices\n", report.DeviceCount)
	result.WriteString("Risk:\n")
	for _, c := range lifecycle.RiskCategories {
		fmt.Fprintf(&result, "  %s: %d\n", c, report.Risk[c])
	}
	result.WriteString("Lifecycle:\n")
	for _, st := range lifecycle.Statuses {
		fmt.Fprintf(&result, "  %s: %d\n", st, report.Lifecycle[st])
	}
	if len(report.HighRisk) > 0 {
		result.WriteString("Highest risk devices:\n")
		for _, a := range report.HighRisk {
			fmt.Fprintf(&result, "  - %s %s score %d (%s)\n", a.Serial, a.Model, a.RiskScore, a.Status)
		}
	}
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleNetworkSummary(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	only := req.StringOr("network_id", "")

	report, err := s.service.Forecast(ctx, 0, 0)
	if err != nil {
		log.Error("MCP network summary failed", "error", err)
		return nil, mcp.NewToolErrorInternal("failed to build report: " + err.Error())
	}

	var result strings.Builder
	for _, n := range report.Networks {
		if only != "" && n.ID != only {
			continue
		}
		fmt.Fprintf(&result, "%s (%s): %d devices, %d high risk, %d past end of support, %d approaching, avg risk %.1f, replacement %s",
			n.Name, n.ID, n.TotalDevices, n.HighRisk, n.EndOfSupport, n.ApproachingEOL, n.AvgRisk, planner.FormatMoney(n.ReplacementCost))
		if n.Critical {
			result.WriteString(" [CRITICAL]")
		}
		result.WriteString("\n")
	}
	if result.Len() == 0 {
		return mcp.NewToolResponseText("No networks found"), nil
	}
	return mcp.NewToolResponseText(result.String()), nil
}

// intParam reads an optional non-negative number, zero when absent
func intParam(req *mcp.ToolRequest, name string) (int, error) {
	n := req.IntOr(name, 0)
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}
	return n, nil
}

func formatResolution(res *refresh.Resolution) string {
	var result strings.Builder
	fmt.Fprintf(&result, "Model: %s\n", res.Query)
	fmt.Fprintf(&result, "Family: %s\n", res.Family.DisplayName())
	if !res.Found {
		result.WriteString("No EOL record found\n")
		fmt.Fprintf(&result, "Lifecycle: %s\n", res.Status)
		return result.String()
	}
	fmt.Fprintf(&result, "Matched: %s (%s)\n", res.Key, res.Rule)
	if res.EndOfSupport != nil {
		fmt.Fprintf(&result, "End of support: %s\n", res.EndOfSupport.Format("2006-01-02"))
	}
	if res.DaysToEOL != nil {
		fmt.Fprintf(&result, "Days to end of support: %d\n", *res.DaysToEOL)
	}
	fmt.Fprintf(&result, "Lifecycle: %s\n", res.Status)
	return result.String()
}

func formatAssessment(a planner.Assessment) string {
	var result strings.Builder
	if a.Serial != "" && a.Serial != "adhoc" {
		fmt.Fprintf(&result, "Serial: %s\n", a.Serial)
	}
	fmt.Fprintf(&result, "Model: %s (%s)\n", a.Model, a.Family.DisplayName())
	if a.EndOfSupport != nil {
		fmt.Fprintf(&result, "End of support: %s\n", a.EndOfSupport.Format("2006-01-02"))
	}
	fmt.Fprintf(&result, "Lifecycle: %s, health %s\n", a.Status, a.Health)
	fmt.Fprintf(&result, "Risk: %d (%s)\n", a.RiskScore, a.RiskCategory)
	fmt.Fprintf(&result, "Replacement: %s", a.Replacement)
	if a.NeedsReplacement() {
		fmt.Fprintf(&result, " [%s]\n", a.Replacement.Reason)
		fmt.Fprintf(&result, "Hardware: %s (%s)\n", planner.FormatMoney(a.Hardware.Price), a.Hardware.Source)
		if a.LicenseCost > 0 {
			fmt.Fprintf(&result, "License: %s per year\n", planner.FormatMoney(a.LicenseCost))
		}
	} else {
		result.WriteString("\n")
	}
	return result.String()
}

// GetHTTPHandler returns the HTTP handler for the MCP server
func (s *Server) GetHTTPHandler() http.HandlerFunc {
	return s.HandleRequest
}

// LogStartup logs MCP server startup information
func (s *Server) LogStartup() {
	log.Info("MCP Server initialized", "version", serverVersion)
	if s.bearerToken != "" {
		log.Info("MCP authentication enabled", "type", "Bearer token")
	} else {
		log.Info("MCP authentication disabled")
	}
	tools := s.mcpServer.ListTools()
	log.Info("MCP tools registered", "count", len(tools))
	for _, tool := range tools {
		log.Debug("MCP tool registered", "name", tool.Name, "description", tool.Description)
	}
}
