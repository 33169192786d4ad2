package rulesd

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/audos/intake/rules"
	"github.com/audos/intake/telemetry"
)

//go:embed rules.json
var defaultRules []byte

// totalsTolerance absorbs float drift when cross-checking the totals
// the client computed against our own arithmetic.
const totalsTolerance = 0.01

// Server hosts the rules service on localhost. With a RulesFile set it
// watches the file and hot-swaps the engine on change; otherwise the
// embedded default ruleset is used.
//
// SECURITY WARNING: the server has no authentication and should only be
// bound to localhost.
type Server struct {
	Port         int
	Host         string
	RulesFile    string
	WatchEnabled bool

	mu     sync.RWMutex
	engine *Engine
}

// New creates a server with the default host and port.
func New(port int, rulesFile string) *Server {
	return &Server{
		Port:      port,
		Host:      "127.0.0.1",
		RulesFile: rulesFile,
	}
}

// Start loads the ruleset, optionally starts the file watcher, and
// serves until the listener fails.
func (s *Server) Start(ctx context.Context) error {
	collector := telemetry.FromContext(ctx)
	timer := collector.Start(fmt.Sprintf("rulesd.start %s:%d", s.Host, s.Port))
	defer timer.End()

	loadTimer := timer.Child("rulesd.load_rules")
	if err := s.reloadRules(); err != nil {
		loadTimer.End()
		return fmt.Errorf("failed to load rules: %w", err)
	}
	loadTimer.End()

	if s.WatchEnabled && s.RulesFile != "" {
		if err := s.startWatcher(ctx); err != nil {
			return fmt.Errorf("failed to start rules watcher: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	return http.ListenAndServe(addr, s.Handler())
}

// Handler returns the service's routes. Exposed so tests can mount the
// mux on httptest servers.
func (s *Server) Handler() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /validate_field", s.handleValidateField)
	mux.HandleFunc("POST /manual-invoice/validate", s.handleValidate)
	mux.HandleFunc("POST /manual-invoice/generate", s.handleGenerate)
	return mux
}

// reloadRules loads the ruleset from RulesFile, or the embedded default
// when no file is configured.
func (s *Server) reloadRules() error {
	var (
		engine *Engine
		err    error
	)
	if s.RulesFile != "" {
		engine, err = LoadEngine(s.RulesFile)
	} else {
		engine, err = NewEngine(defaultRules)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()
	return nil
}

func (s *Server) currentEngine() *Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// startWatcher watches the rules file and hot-swaps the engine when it
// changes. A bad edit keeps the previous engine serving.
func (s *Server) startWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(s.RulesFile); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", s.RulesFile, err)
	}

	go s.runWatcher(ctx, watcher)
	return nil
}

// runWatcher processes file system events with debouncing.
func (s *Server) runWatcher(ctx context.Context, watcher *fsnotify.Watcher) {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		_ = watcher.Close()
	}()

	// Editors often write files in multiple steps
	const debounceDelay = 100 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			// Remove/Rename are common in atomic saves
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}

			debounceTimer = time.AfterFunc(debounceDelay, func() {
				if err := s.reloadRules(); err != nil {
					log.Printf("Failed to reload rules: %v", err)
					return
				}
				// Re-add in case the file was replaced atomically
				_ = watcher.Add(s.RulesFile)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Rules watcher error: %v", err)
		}
	}
}

func (s *Server) handleValidateField(w http.ResponseWriter, r *http.Request) {
	var req rules.FieldCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "JSON body required", nil)
		return
	}
	if req.Field == "" {
		writeError(w, http.StatusBadRequest, "field is required", nil)
		return
	}

	status := "fail"
	if s.currentEngine().CheckField(req.Field, req.Value) {
		status = "pass"
	}
	writeJSON(w, http.StatusOK, rules.FieldCheckResult{Status: status})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	payload, errs := decodePayload(r)
	if payload == nil {
		writeError(w, http.StatusBadRequest, "JSON body is required", nil)
		return
	}
	if len(errs) > 0 {
		writeError(w, http.StatusBadRequest, "Validation failed", errs)
		return
	}

	report := s.validate(payload)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	payload, errs := decodePayload(r)
	if payload == nil {
		writeError(w, http.StatusBadRequest, "JSON body is required", nil)
		return
	}
	if len(errs) > 0 {
		writeError(w, http.StatusBadRequest, "Validation failed", errs)
		return
	}

	report := s.validate(payload)

	data, err := renderPDF(payload, report)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "PDF generation failed", nil)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "invoice_"+payload.InvoiceNo+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// decodePayload parses the request body and runs the handler-level
// structural checks shared by validate and generate: required fields,
// the 13-digit registration number, date shape, item shapes, and the
// totals cross-check. Returns a nil payload for an unreadable body.
func decodePayload(r *http.Request) (*rules.InvoicePayload, []string) {
	var p rules.InvoicePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		return nil, nil
	}

	p.SellerName = strings.TrimSpace(p.SellerName)
	p.SellerRegNo = strings.TrimSpace(p.SellerRegNo)
	p.SellerAddress = strings.TrimSpace(p.SellerAddress)
	p.BuyerName = strings.TrimSpace(p.BuyerName)
	p.BuyerAddress = strings.TrimSpace(p.BuyerAddress)
	p.InvoiceNo = strings.TrimSpace(p.InvoiceNo)
	p.InvoiceDate = strings.TrimSpace(p.InvoiceDate)
	p.DueDate = strings.TrimSpace(p.DueDate)
	if p.Language != "ja" {
		p.Language = "en"
	}

	var errs []string
	if p.SellerName == "" {
		errs = append(errs, "sellerName is required")
	}
	if p.SellerRegNo == "" {
		errs = append(errs, "sellerRegNo is required")
	} else if !isDigits(p.SellerRegNo) || len(p.SellerRegNo) != 13 {
		errs = append(errs, "sellerRegNo must be a 13-digit numeric value")
	}
	if p.SellerAddress == "" {
		errs = append(errs, "sellerAddress is required")
	}
	if p.BuyerName == "" {
		errs = append(errs, "buyerName is required")
	}
	if p.BuyerAddress == "" {
		errs = append(errs, "buyerAddress is required")
	}
	if p.InvoiceNo == "" {
		errs = append(errs, "invoiceNo is required")
	}
	if p.InvoiceDate == "" {
		errs = append(errs, "invoiceDate is required")
	} else if !isoDate(p.InvoiceDate) {
		errs = append(errs, "invoiceDate must be in YYYY-MM-DD format")
	}
	if len(p.Items) == 0 {
		errs = append(errs, "items must be a non-empty array")
	}

	for idx, item := range p.Items {
		if strings.TrimSpace(item.Description) == "" {
			errs = append(errs, fmt.Sprintf("items[%d].description is required", idx))
		}
		if item.Qty <= 0 {
			errs = append(errs, fmt.Sprintf("items[%d].qty must be a positive number", idx))
		}
		if item.UnitPrice < 0 {
			errs = append(errs, fmt.Sprintf("items[%d].unitPrice must be a non-negative number", idx))
		}
		if strings.TrimSpace(item.TaxRate) == "" {
			errs = append(errs, fmt.Sprintf("items[%d].taxRate is required", idx))
		}
	}

	if len(errs) == 0 {
		errs = append(errs, checkTotals(&p)...)
	}

	return &p, errs
}

// taxRateNumber maps a "<n>%" tax-rate string to its numeric value.
// Rates outside the allowed set fall back to the standard 10% so the
// totals cross-check stays meaningful and the ruleset, not this check,
// reports the invalid rate.
func taxRateNumber(raw string) float64 {
	trimmed := strings.TrimSuffix(strings.TrimSpace(raw), "%")
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || (n != 0 && n != 8 && n != 10) {
		return 10
	}
	return n
}

// checkTotals recomputes the totals from the items and compares them to
// what the client sent, within tolerance.
func checkTotals(p *rules.InvoicePayload) []string {
	var subtotal, taxTotal float64
	for _, item := range p.Items {
		amount := item.Qty * item.UnitPrice
		subtotal += amount
		taxTotal += amount * taxRateNumber(item.TaxRate) / 100.0
	}
	grandTotal := subtotal + taxTotal

	var errs []string
	if math.Abs(p.Totals.Subtotal-subtotal) > totalsTolerance {
		errs = append(errs, fmt.Sprintf("Subtotal mismatch: expected %v, computed %.2f", p.Totals.Subtotal, subtotal))
	}
	if math.Abs(p.Totals.TaxTotal-taxTotal) > totalsTolerance {
		errs = append(errs, fmt.Sprintf("Tax total mismatch: expected %v, computed %.2f", p.Totals.TaxTotal, taxTotal))
	}
	if math.Abs(p.Totals.GrandTotal-grandTotal) > totalsTolerance {
		errs = append(errs, fmt.Sprintf("Grand total mismatch: expected %v, computed %.2f", p.Totals.GrandTotal, grandTotal))
	}
	return errs
}

// validate normalizes the payload to the service vocabulary and runs
// the ruleset over it.
func (s *Server) validate(p *rules.InvoicePayload) *rules.ValidationReport {
	normalized := normalize(p)
	fails := s.currentEngine().Evaluate(normalized)

	issues := make([]string, len(fails))
	for i, f := range fails {
		issues[i] = f.Message(p.Language)
	}

	compliant := len(fails) == 0
	status := "fail"
	if compliant {
		status = "pass"
	}

	return &rules.ValidationReport{
		Compliant:   compliant,
		IssuesCount: len(fails),
		Issues:      issues,
		Normalized:  normalized,
		Status:      status,
		Language:    p.Language,
	}
}

// normalize maps the intake vocabulary onto the ruleset vocabulary,
// adding the T prefix to the registration number and collapsing each
// item to its tax-exclusive amount.
func normalize(p *rules.InvoicePayload) map[string]any {
	issuerID := p.SellerRegNo
	if issuerID != "" && !strings.HasPrefix(issuerID, "T") {
		issuerID = "T" + issuerID
	}

	items := make([]map[string]any, len(p.Items))
	for i, item := range p.Items {
		items[i] = map[string]any{
			"description":     strings.TrimSpace(item.Description),
			"amount_excl_tax": item.Qty * item.UnitPrice,
			"tax_rate":        strings.TrimSpace(item.TaxRate),
		}
	}

	date := p.InvoiceDate
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	normalized := map[string]any{
		"invoice_number": p.InvoiceNo,
		"issuer_name":    p.SellerName,
		"issuer_id":      issuerID,
		"buyer":          p.BuyerName,
		"address":        p.SellerAddress,
		"date":           date,
		"items":          items,
	}
	if p.DueDate != "" {
		normalized["due_date"] = p.DueDate
	}
	return normalized
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string, details []string) {
	writeJSON(w, status, rules.ErrorBody{Error: message, Details: details})
}
