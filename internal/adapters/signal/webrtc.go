package signal

import (
	"encoding/json"

	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
)

// handleRelay forwards offers, answers and ICE candidates between peers.
// The payload is decoded only far enough to find the target.
func (ctl *SignalWSController) handleRelay(sid domain.ConnID, data json.RawMessage) error {
	var p core.SignalPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.Relay(sid, p.To, p.Description, p.Candidate)
}
