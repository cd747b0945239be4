// Package coreapitest provides an in-process core admin API for tests.
package coreapitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/EternisAI/silo-enroll/internal/coreapi"
)

const Token = "core-test-token"

// Server fakes the subset of the core admin API used for enrollment. Every
// assigned address is reserved, so a second device cannot take it.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	disabled     map[string]bool
	devices      map[string][]coreapi.Device
	reserved     map[string]bool
	networks     map[int64]string
	nextDeviceID int64
	omitConfigs  bool
	failAdd      bool
	addCalls     []coreapi.AddDeviceRequest
	issued       int
}

func NewServer() *Server {
	s := &Server{
		disabled:     map[string]bool{},
		devices:      map[string][]coreapi.Device{},
		reserved:     map[string]bool{},
		networks:     map[int64]string{1: "office", 2: "lab"},
		nextDeviceID: 100,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/user/", s.handleUser)
	mux.HandleFunc("/api/v1/device/network/ip/", s.handleIP)
	mux.HandleFunc("/api/v1/device/user/", s.handleListDevices)
	mux.HandleFunc("/api/v1/device/", s.handleAddDevice)
	s.Server = httptest.NewServer(s.authorize(mux))
	return s
}

// ClientConfig points a coreapi.Client at the fake.
func (s *Server) ClientConfig() coreapi.Config {
	return coreapi.Config{BaseURL: s.URL, APIToken: Token}
}

func (s *Server) Disable(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled[username] = true
}

func (s *Server) AddDevice(username, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextDeviceID++
	s.devices[username] = append(s.devices[username], coreapi.Device{ID: s.nextDeviceID, Name: name})
}

func (s *Server) Reserve(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserved[ip] = true
}

// RenameNetwork changes the name reported for a location's network.
func (s *Server) RenameNetwork(locationID int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks[locationID] = name
}

// OmitConfigs makes device registration return no configurations.
func (s *Server) OmitConfigs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitConfigs = true
}

// FailAddDevice makes device registration answer 500.
func (s *Server) FailAddDevice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAdd = true
}

func (s *Server) AddDeviceRequests() []coreapi.AddDeviceRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]coreapi.AddDeviceRequest(nil), s.addCalls...)
}

func (s *Server) IssuedTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/user/")
	username, action, ok := strings.Cut(rest, "/")
	if !ok || action != "start_enrollment" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled[username] {
		writeJSON(w, http.StatusForbidden, map[string]string{"msg": "user is disabled"})
		return
	}
	s.issued++
	writeJSON(w, http.StatusCreated, coreapi.StartEnrollmentResponse{
		EnrollmentToken: fmt.Sprintf("token-%s-%d", username, s.issued),
		EnrollmentURL:   "https://enroll.example.com",
	})
}

func (s *Server) handleIP(w http.ResponseWriter, r *http.Request) {
	loc, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/v1/device/network/ip/"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "bad location"})
		return
	}
	prefix := fmt.Sprintf("10.%d.0.", loc)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.networks[loc]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"msg": "location not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, []coreapi.IPRecommendation{
			{NetworkPart: prefix, NetworkPrefix: 24, ModifiablePart: "2"},
		})
	case http.MethodPost:
		var req coreapi.ValidateIPsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"msg": err.Error()})
			return
		}
		out := make([]coreapi.IPValidation, len(req.IPs))
		for i, ip := range req.IPs {
			valid := strings.HasPrefix(ip, prefix)
			out[i] = coreapi.IPValidation{Valid: valid, Available: valid && !s.reserved[ip]}
		}
		writeJSON(w, http.StatusOK, out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimPrefix(r.URL.Path, "/api/v1/device/user/")
	s.mu.Lock()
	defer s.mu.Unlock()
	devices := s.devices[username]
	if devices == nil {
		devices = []coreapi.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	username := strings.TrimPrefix(r.URL.Path, "/api/v1/device/")

	var req coreapi.AddDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.addCalls = append(s.addCalls, req)
	if s.failAdd {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"msg": "database unavailable"})
		return
	}

	s.nextDeviceID++
	device := coreapi.Device{ID: s.nextDeviceID, Name: req.Name, WireguardPubkey: req.WireguardPubkey}
	s.devices[username] = append(s.devices[username], device)
	for _, ip := range req.AssignedIPs {
		s.reserved[ip] = true
	}

	resp := coreapi.AddDeviceResponse{Device: device, Configs: []coreapi.DeviceConfig{}}
	if !s.omitConfigs {
		name := s.networks[req.LocationID]
		resp.Configs = append(resp.Configs, coreapi.DeviceConfig{
			NetworkID:   req.LocationID,
			NetworkName: name,
			Address:     req.AssignedIPs,
			Endpoint:    "vpn.example.com:51820",
			AllowedIPs:  []string{"10.0.0.0/8"},
			PubKey:      "c2VydmVyLXB1YmxpYy1rZXktcGxhY2Vob2xkZXI9PT0=",
			Config: fmt.Sprintf("[Interface]\nPrivateKey = YOUR_PRIVATE_KEY\nAddress = %s\n\n[Peer]\nEndpoint = vpn.example.com:51820\n",
				strings.Join(req.AssignedIPs, ",")),
		})
	}
	writeJSON(w, http.StatusCreated, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
