package enrollment

import (
	"github.com/EternisAI/silo-enroll/internal/addressing"
	"github.com/EternisAI/silo-enroll/internal/coreapi"
	"github.com/EternisAI/silo-enroll/internal/registration"
)

// NewCoreController builds a Controller backed by the core admin API.
func NewCoreController(client *coreapi.Client, recorder Recorder, opts Options) *Controller {
	return NewController(Dependencies{
		Issuer:     client,
		Devices:    client,
		Negotiator: addressing.NewNegotiator(client),
		Submitter:  registration.NewSubmitter(client),
		Recorder:   recorder,
	}, opts)
}
