package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/EternisAI/silo-enroll/internal/coreapi"
)

var ErrSubmissionInFlight = errors.New("a device registration is already in progress")

// Request carries everything needed to create a device. It never carries a
// private key.
type Request struct {
	Username    string
	Name        string
	LocationID  int64
	PublicKey   string
	Addresses   []string
	Description string
}

type Response struct {
	Device  coreapi.Device
	Configs []coreapi.DeviceConfig
}

// DeviceCreator is the core API operation that durably creates a device.
type DeviceCreator interface {
	AddDevice(ctx context.Context, username string, req coreapi.AddDeviceRequest) (*coreapi.AddDeviceResponse, error)
}

// Submitter performs the final device commit. Failed submissions are never
// retried here: a request that timed out may still have created the device.
type Submitter struct {
	creator  DeviceCreator
	inFlight atomic.Bool
}

func NewSubmitter(creator DeviceCreator) *Submitter {
	return &Submitter{creator: creator}
}

func (s *Submitter) Submit(ctx context.Context, req Request) (*Response, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInFlight
	}
	defer s.inFlight.Store(false)

	resp, err := s.creator.AddDevice(ctx, req.Username, coreapi.AddDeviceRequest{
		Name:            req.Name,
		WireguardPubkey: req.PublicKey,
		LocationID:      req.LocationID,
		AssignedIPs:     req.Addresses,
		Description:     req.Description,
	})
	if err != nil {
		slog.Error("Device registration failed",
			"username", req.Username,
			"device_name", req.Name,
			"location_id", req.LocationID,
			"error", err)
		return nil, fmt.Errorf("register device: %w", err)
	}

	slog.Info("Device registered",
		"username", req.Username,
		"device_id", resp.Device.ID,
		"device_name", resp.Device.Name,
		"configs", len(resp.Configs))

	return &Response{Device: resp.Device, Configs: resp.Configs}, nil
}

// InFlight reports whether a submission is outstanding.
func (s *Submitter) InFlight() bool {
	return s.inFlight.Load()
}
