package signal

import (
	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
)

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendEvent(conn, core.Event{Type: core.EvPong})
}

func (ctl *SignalWSController) handleWhoAmI(sid domain.ConnID, conn *WsSignalConn) error {
	who, err := ctl.Orch.WhoAmI(sid)
	if err != nil {
		return err
	}
	ctl.sendEvent(conn, core.Event{Type: core.EvWhoAmI, Data: who})
	return nil
}
