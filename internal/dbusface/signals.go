package dbusface

import (
	"fmt"

	"github.com/jmylchreest/notifd/internal/notification"
)

// EmitNotificationClosed implements pipeline.SignalEmitter.
func (s *Server) EmitNotificationClosed(id uint32, reason notification.CloseReason) error {
	if s.conn == nil {
		return fmt.Errorf("dbusface: not connected")
	}
	if err := s.conn.Emit(busPath, busInterface+".NotificationClosed", id, uint32(reason)); err != nil {
		return fmt.Errorf("emit NotificationClosed: %w", err)
	}
	s.logger.Debug("emitted NotificationClosed", "id", id, "reason", reason.String())
	return nil
}

// EmitActionInvoked implements pipeline.SignalEmitter.
func (s *Server) EmitActionInvoked(id uint32, actionKey string) error {
	if s.conn == nil {
		return fmt.Errorf("dbusface: not connected")
	}
	if err := s.conn.Emit(busPath, busInterface+".ActionInvoked", id, actionKey); err != nil {
		return fmt.Errorf("emit ActionInvoked: %w", err)
	}
	s.logger.Debug("emitted ActionInvoked", "id", id, "action_key", actionKey)
	return nil
}

// EmitActivationToken implements pipeline.SignalEmitter.
func (s *Server) EmitActivationToken(id uint32, token string) error {
	if s.conn == nil {
		return fmt.Errorf("dbusface: not connected")
	}
	if err := s.conn.Emit(busPath, busInterface+".ActivationToken", id, token); err != nil {
		return fmt.Errorf("emit ActivationToken: %w", err)
	}
	s.logger.Debug("emitted ActivationToken", "id", id)
	return nil
}
