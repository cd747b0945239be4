package enrollment

import (
	"github.com/EternisAI/silo-enroll/internal/coreapi"
	"github.com/EternisAI/silo-enroll/internal/delivery"
	"github.com/EternisAI/silo-enroll/internal/keys"
	"github.com/EternisAI/silo-enroll/internal/registration"
	"github.com/google/uuid"
)

type StepKind string

const (
	StepStartChoice         StepKind = "start_choice"
	StepClientSetup         StepKind = "client_setup"
	StepManualSetup         StepKind = "manual_setup"
	StepManualConfiguration StepKind = "manual_configuration"
)

// Step is the wizard position. Data that only makes sense in one step lives
// on that step's type.
type Step interface {
	Kind() StepKind
}

type StartChoice struct{}

type ClientSetup struct {
	Enrollment delivery.Enrollment
}

type ManualSetup struct {
	Form ManualForm
}

type ManualConfiguration struct {
	LocationID   int64
	Keys         keys.KeyPair
	Registration registration.Response
}

func (StartChoice) Kind() StepKind         { return StepStartChoice }
func (ClientSetup) Kind() StepKind         { return StepClientSetup }
func (ManualSetup) Kind() StepKind         { return StepManualSetup }
func (ManualConfiguration) Kind() StepKind { return StepManualConfiguration }

// ManualForm is the server-held part of the manual setup form.
type ManualForm struct {
	LocationID      int64
	Recommendations []coreapi.IPRecommendation
}

type User struct {
	Username string
}

// Session is one in-progress enrollment. It is only mutated by the
// Controller while holding its lock.
type Session struct {
	ID   uuid.UUID
	User User

	devices    []string
	step       Step
	enrollment *delivery.Enrollment
	pending    bool
}

func newSession(user User, devices []string) *Session {
	snapshot := make([]string, len(devices))
	copy(snapshot, devices)
	return &Session{
		ID:      uuid.New(),
		User:    user,
		devices: snapshot,
		step:    StartChoice{},
	}
}

func (s *Session) Step() Step {
	return s.step
}

// Devices returns a copy of the existing device names.
func (s *Session) Devices() []string {
	out := make([]string, len(s.devices))
	copy(out, s.devices)
	return out
}

func (s *Session) hasDevice(name string) bool {
	for _, d := range s.devices {
		if d == name {
			return true
		}
	}
	return false
}

// Enrollment returns the issued credential, if any.
func (s *Session) Enrollment() (delivery.Enrollment, bool) {
	if s.enrollment == nil {
		return delivery.Enrollment{}, false
	}
	return *s.enrollment, true
}
