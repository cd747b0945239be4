package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/EternisAI/silo-enroll/internal/addressing"
	"github.com/EternisAI/silo-enroll/internal/coreapi"
	"github.com/EternisAI/silo-enroll/internal/delivery"
	"github.com/EternisAI/silo-enroll/internal/journal"
	"github.com/EternisAI/silo-enroll/internal/keys"
	"github.com/EternisAI/silo-enroll/internal/registration"
)

const (
	DefaultIssueTimeout  = 15 * time.Second
	DefaultSubmitTimeout = 30 * time.Second
	journalTimeout       = 5 * time.Second
)

type Issuer interface {
	StartEnrollment(ctx context.Context, username string, notify bool) (*coreapi.StartEnrollmentResponse, error)
}

type DeviceLister interface {
	ListUserDevices(ctx context.Context, username string) ([]coreapi.Device, error)
}

type AddressNegotiator interface {
	Recommend(ctx context.Context, locationID int64) ([]coreapi.IPRecommendation, error)
	Revalidate(ctx context.Context, locationID int64, candidates, reserved []string) error
}

type Submitter interface {
	Submit(ctx context.Context, req registration.Request) (*registration.Response, error)
}

type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

type Dependencies struct {
	Issuer     Issuer
	Devices    DeviceLister
	Negotiator AddressNegotiator
	Submitter  Submitter
	Generator  keys.Generator
	Recorder   Recorder
}

type Options struct {
	IssueTimeout  time.Duration
	SubmitTimeout time.Duration
}

type KeyMode string

const (
	KeyModeGenerate KeyMode = "generate"
	KeyModeManual   KeyMode = "manual"
)

// ManualInput is what the operator submits on the manual setup form.
type ManualInput struct {
	Name        string
	LocationID  int64
	KeyMode     KeyMode
	PublicKey   string
	Addresses   []string
	Description string
}

// SubmitResult describes a committed device. Closed is set when the core API
// returned no configurations and the session was closed.
type SubmitResult struct {
	Closed  bool
	Device  coreapi.Device
	Configs []coreapi.DeviceConfig
	Keys    keys.KeyPair
}

// Controller drives one operator's enrollment wizard.
type Controller struct {
	mu      sync.Mutex
	store   *Store
	tracker addressing.Tracker
	deps    Dependencies
	opts    Options
}

func NewController(deps Dependencies, opts Options) *Controller {
	if opts.IssueTimeout <= 0 {
		opts.IssueTimeout = DefaultIssueTimeout
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = DefaultSubmitTimeout
	}
	if deps.Generator == nil {
		deps.Generator = keys.NewGenerator()
	}
	return &Controller{
		store: NewStore(),
		deps:  deps,
		opts:  opts,
	}
}

// Open starts a new session for username from StartChoice. Any previous
// session and its artifacts are discarded.
func (c *Controller) Open(ctx context.Context, username string) (View, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return View{}, FieldErrors{"username": CodeRequired}
	}

	var names []string
	if c.deps.Devices != nil {
		devices, err := c.deps.Devices.ListUserDevices(ctx, username)
		if err != nil {
			return View{}, fmt.Errorf("load devices for %s: %w", username, err)
		}
		names = make([]string, 0, len(devices))
		for _, d := range devices {
			names = append(names, d.Name)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracker.Invalidate()
	s := c.store.Open(User{Username: username}, names)
	return viewOf(s), nil
}

func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracker.Invalidate()
	c.store.Close()
}

// Reset restarts the wizard for the same user.
func (c *Controller) Reset() (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracker.Invalidate()
	s, ok := c.store.Reset()
	if !ok {
		return View{}, ErrNoSession
	}
	return viewOf(s), nil
}

// HasSession reports whether a session is open.
func (c *Controller) HasSession() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.store.Current()
	return ok
}

func (c *Controller) View() (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.store.Current()
	if !ok {
		return View{}, ErrNoSession
	}
	return viewOf(s), nil
}

// StartClientActivation issues an enrollment token and moves to ClientSetup.
// On failure the session stays in StartChoice.
func (c *Controller) StartClientActivation(ctx context.Context) (View, error) {
	c.mu.Lock()
	s, err := c.begin(StepStartChoice)
	if err != nil {
		c.mu.Unlock()
		return View{}, err
	}
	username := s.User.Username
	c.mu.Unlock()

	issueCtx, cancel := context.WithTimeout(ctx, c.opts.IssueTimeout)
	resp, issueErr := c.deps.Issuer.StartEnrollment(issueCtx, username, false)
	cancel()

	c.mu.Lock()
	if !c.store.isCurrent(s) {
		c.mu.Unlock()
		slog.Debug("Dropping enrollment issuance result for closed session", "session_id", s.ID)
		return View{}, ErrSessionClosed
	}
	s.pending = false
	if s.step.Kind() != StepStartChoice {
		c.mu.Unlock()
		slog.Debug("Dropping enrollment issuance result for a session that moved on", "session_id", s.ID)
		return View{}, ErrInvalidTransition
	}

	if issueErr != nil {
		c.mu.Unlock()
		if errors.Is(issueErr, coreapi.ErrAccountDisabled) {
			slog.Warn("Enrollment refused for disabled account", "username", username)
			return View{}, fmt.Errorf("%w: %w", ErrAccountDisabled, issueErr)
		}
		slog.Error("Enrollment issuance failed", "username", username, "error", issueErr)
		return View{}, fmt.Errorf("%w: %w", ErrIssuanceFailed, issueErr)
	}

	e := delivery.Enrollment{Token: resp.EnrollmentToken, URL: resp.EnrollmentURL}
	s.enrollment = &e
	s.step = ClientSetup{Enrollment: e}
	view := viewOf(s)
	c.mu.Unlock()

	slog.Info("Enrollment token issued", "session_id", s.ID, "username", username)
	c.record(ctx, journal.Entry{
		SessionID: s.ID,
		Username:  username,
		Kind:      journal.KindEnrollmentIssued,
		TokenHash: journal.HashToken(e.Token),
	})
	return view, nil
}

func (c *Controller) StartManualSetup() (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.current(StepStartChoice)
	if err != nil {
		return View{}, err
	}
	if s.pending {
		return View{}, ErrOperationInFlight
	}
	s.step = ManualSetup{}
	return viewOf(s), nil
}

// Back returns from ManualSetup to StartChoice, dropping the manual form.
func (c *Controller) Back() (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.current(StepManualSetup)
	if err != nil {
		return View{}, err
	}
	if s.pending {
		return View{}, ErrOperationInFlight
	}
	c.tracker.Invalidate()
	s.step = StartChoice{}
	return viewOf(s), nil
}

// SelectLocation sets the target location and fetches address
// recommendations for it. Only the most recent selection is applied.
func (c *Controller) SelectLocation(ctx context.Context, locationID int64) ([]coreapi.IPRecommendation, error) {
	if locationID <= 0 {
		return nil, FieldErrors{"location_id": CodeRequired}
	}

	c.mu.Lock()
	s, err := c.current(StepManualSetup)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if s.pending {
		c.mu.Unlock()
		return nil, ErrOperationInFlight
	}
	s.step = ManualSetup{Form: ManualForm{LocationID: locationID}}
	if !addressing.ShouldRecommend(addressing.ModeCreate) {
		c.mu.Unlock()
		return nil, nil
	}
	ticket := c.tracker.Begin(locationID)
	c.mu.Unlock()

	recs, recErr := c.deps.Negotiator.Recommend(ctx, locationID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.store.isCurrent(s) {
		return nil, ErrSessionClosed
	}
	if !c.tracker.Current(ticket) {
		slog.Debug("Ignoring stale address recommendation", "session_id", s.ID, "location_id", locationID)
		return nil, ErrStaleRecommendation
	}
	if recErr != nil {
		return nil, recErr
	}
	if setup, ok := s.step.(ManualSetup); ok && setup.Form.LocationID == locationID {
		setup.Form.Recommendations = recs
		s.step = setup
	}
	return recs, nil
}

// SubmitManual validates the form, generates keys if requested, revalidates
// addresses and registers the device. Field errors and failures leave the
// session in ManualSetup.
func (c *Controller) SubmitManual(ctx context.Context, in ManualInput) (*SubmitResult, error) {
	c.mu.Lock()
	s, err := c.current(StepManualSetup)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if s.pending {
		c.mu.Unlock()
		return nil, ErrOperationInFlight
	}

	form := s.step.(ManualSetup).Form
	if in.LocationID == 0 {
		in.LocationID = form.LocationID
	}
	in.Name = strings.TrimSpace(in.Name)
	in.PublicKey = strings.TrimSpace(in.PublicKey)

	if fieldErrs := validateManual(s, in); len(fieldErrs) > 0 {
		c.mu.Unlock()
		return nil, fieldErrs
	}

	s.pending = true
	// A recommendation still in flight must not land after this point.
	c.tracker.Invalidate()
	username := s.User.Username
	c.mu.Unlock()

	result, err := c.commit(ctx, username, in)

	c.mu.Lock()
	if !c.store.isCurrent(s) {
		c.mu.Unlock()
		if err == nil {
			slog.Warn("Device registered after session was closed",
				"session_id", s.ID, "username", username, "device_id", result.Device.ID)
		}
		return nil, ErrSessionClosed
	}
	s.pending = false
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	if len(result.Configs) == 0 {
		c.tracker.Invalidate()
		c.store.Close()
		result.Closed = true
	} else {
		s.step = ManualConfiguration{
			LocationID: in.LocationID,
			Keys:       result.Keys,
			Registration: registration.Response{
				Device:  result.Device,
				Configs: result.Configs,
			},
		}
	}
	c.mu.Unlock()

	c.record(ctx, journal.Entry{
		SessionID:  s.ID,
		Username:   username,
		Kind:       journal.KindDeviceRegistered,
		DeviceName: result.Device.Name,
		DeviceID:   result.Device.ID,
		LocationID: in.LocationID,
	})
	return result, nil
}

func (c *Controller) commit(ctx context.Context, username string, in ManualInput) (*SubmitResult, error) {
	addresses := make([]string, len(in.Addresses))
	for i, a := range in.Addresses {
		addresses[i] = strings.TrimSpace(a)
	}

	var kp keys.KeyPair
	switch in.KeyMode {
	case KeyModeManual:
		kp = keys.KeyPair{PublicKey: in.PublicKey}
	default:
		generated, err := c.deps.Generator.Generate()
		if err != nil {
			slog.Error("Key generation failed", "username", username, "error", err)
			return nil, err
		}
		kp = generated
	}

	// Addresses are checked as close to submission as possible.
	if err := c.deps.Negotiator.Revalidate(ctx, in.LocationID, addresses, nil); err != nil {
		var addrErrs addressing.AddressErrors
		if errors.As(err, &addrErrs) {
			fieldErrs := FieldErrors{}
			for i, code := range addrErrs {
				fieldErrs["addresses["+strconv.Itoa(i)+"]"] = code
			}
			return nil, fieldErrs
		}
		return nil, err
	}

	submitCtx, cancel := context.WithTimeout(ctx, c.opts.SubmitTimeout)
	defer cancel()
	resp, err := c.deps.Submitter.Submit(submitCtx, registration.Request{
		Username:    username,
		Name:        in.Name,
		LocationID:  in.LocationID,
		PublicKey:   kp.PublicKey,
		Addresses:   addresses,
		Description: in.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}

	return &SubmitResult{
		Device:  resp.Device,
		Configs: resp.Configs,
		Keys:    kp,
	}, nil
}

func validateManual(s *Session, in ManualInput) FieldErrors {
	errs := FieldErrors{}
	switch {
	case in.Name == "":
		errs["name"] = CodeRequired
	case s.hasDevice(in.Name):
		errs["name"] = CodeDuplicate
	}
	if in.LocationID <= 0 {
		errs["location_id"] = CodeRequired
	}
	switch in.KeyMode {
	case KeyModeGenerate, "":
	case KeyModeManual:
		if err := keys.ValidatePublicKey(in.PublicKey); err != nil {
			errs["public_key"] = CodeInvalid
		}
	default:
		errs["key_mode"] = CodeInvalid
	}
	return errs
}

// Enrollment returns the credential of a session in ClientSetup.
func (c *Controller) Enrollment() (delivery.Enrollment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.current(StepClientSetup)
	if err != nil {
		return delivery.Enrollment{}, err
	}
	e, _ := s.Enrollment()
	return e, nil
}

// Config returns the registered configuration for networkID together with the
// generated private key, which is empty when the operator supplied the key.
func (c *Controller) Config(networkID int64) (coreapi.DeviceConfig, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.current(StepManualConfiguration)
	if err != nil {
		return coreapi.DeviceConfig{}, "", err
	}
	mc := s.step.(ManualConfiguration)
	for _, cfg := range mc.Registration.Configs {
		if cfg.NetworkID == networkID {
			return cfg, mc.Keys.PrivateKey, nil
		}
	}
	return coreapi.DeviceConfig{}, "", ErrConfigNotFound
}

// current returns the open session if it is in the wanted step.
func (c *Controller) current(want StepKind) (*Session, error) {
	s, ok := c.store.Current()
	if !ok {
		return nil, ErrNoSession
	}
	if s.step.Kind() != want {
		return nil, fmt.Errorf("%w: session is in %s", ErrInvalidTransition, s.step.Kind())
	}
	return s, nil
}

// begin is current plus the in-flight guard.
func (c *Controller) begin(want StepKind) (*Session, error) {
	s, err := c.current(want)
	if err != nil {
		return nil, err
	}
	if s.pending {
		return nil, ErrOperationInFlight
	}
	s.pending = true
	return s, nil
}

func (c *Controller) record(ctx context.Context, e journal.Entry) {
	if c.deps.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := c.deps.Recorder.Record(ctx, e); err != nil {
		slog.Warn("Failed to record enrollment journal entry",
			"kind", e.Kind, "username", e.Username, "error", err)
	}
}
