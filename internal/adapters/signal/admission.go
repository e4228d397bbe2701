package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
)

func (ctl *SignalWSController) handleAdmitUser(ctx context.Context, sid domain.ConnID, data json.RawMessage) error {
	var p core.AdmitUserPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.AdmitUser(ctx, sid, p.RoomCode, p.ConnectionID, p.Admit)
}

func (ctl *SignalWSController) handleAdmitAll(ctx context.Context, sid domain.ConnID, data json.RawMessage) error {
	var p core.AdmitAllPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.AdmitAll(ctx, sid, p.RoomCode)
}
