package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
)

func (ctl *SignalWSController) handleCreateRoom(ctx context.Context, sid domain.ConnID) error {
	_, err := ctl.Orch.CreateRoom(ctx, sid)
	return err
}

func (ctl *SignalWSController) handleJoin(ctx context.Context, sid domain.ConnID, data json.RawMessage) error {
	var p core.JoinRoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.JoinRoom(ctx, sid, p.RoomCode)
}

// handleLeave takes the connection out of its room without closing it.
func (ctl *SignalWSController) handleLeave(ctx context.Context, sid domain.ConnID, data json.RawMessage) error {
	var p core.LeaveRoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.LeaveRoom(ctx, sid, p.RoomCode)
}

func (ctl *SignalWSController) handleSendMessage(ctx context.Context, sid domain.ConnID, data json.RawMessage) error {
	var p core.SendMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.SendMessage(ctx, sid, p.RoomCode, p.Text)
}
