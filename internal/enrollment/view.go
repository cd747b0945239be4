package enrollment

import (
	"github.com/EternisAI/silo-enroll/internal/coreapi"
	"github.com/EternisAI/silo-enroll/internal/delivery"
	"github.com/google/uuid"
)

// View is a read-only snapshot of a session. Private keys are never part of
// a view.
type View struct {
	SessionID  uuid.UUID
	Username   string
	Step       StepKind
	Pending    bool
	Devices    []string
	Enrollment *delivery.Enrollment
	Form       *ManualForm
	Device     *coreapi.Device
	Configs    []coreapi.DeviceConfig
	PublicKey  string
	KeysLocal  bool
}

func viewOf(s *Session) View {
	v := View{
		SessionID: s.ID,
		Username:  s.User.Username,
		Step:      s.step.Kind(),
		Pending:   s.pending,
		Devices:   s.Devices(),
	}

	switch st := s.step.(type) {
	case ClientSetup:
		e := st.Enrollment
		v.Enrollment = &e
	case ManualSetup:
		form := st.Form
		form.Recommendations = append([]coreapi.IPRecommendation(nil), st.Form.Recommendations...)
		v.Form = &form
	case ManualConfiguration:
		dev := st.Registration.Device
		v.Device = &dev
		v.Configs = append([]coreapi.DeviceConfig(nil), st.Registration.Configs...)
		v.PublicKey = st.Keys.PublicKey
		v.KeysLocal = st.Keys.PrivateKey != ""
	}
	return v
}
