// Package audit provides audit logging for the RGS
// Compliant with GLI-19 §2.8.8: Significant Event Information
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alexbotov/cascade/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types per GLI-19 §2.8.8
const (
	EventPlayerRegistered    = "player_registered"
	EventPlayerLogin         = "player_login"
	EventPlayerLogout        = "player_logout"
	EventLoginFailed         = "login_failed"
	EventDeposit             = "deposit"
	EventRoundSettled        = "round_settled"
	EventSettlementFailed    = "settlement_failed"
	EventRoundRecordFailed   = "round_record_failed"
	EventBonusTriggered      = "bonus_triggered"
	EventMaxWinReached       = "max_win_reached"
	EventLargeWin            = "large_win"
	EventCascadeRunaway      = "cascade_non_termination"
	EventGamingDisabled      = "gaming_disabled"
	EventGamingEnabled       = "gaming_enabled"
	EventGameDisabled        = "game_disabled"
	EventGameEnabled         = "game_enabled"
	EventAccountStatusChange = "account_status_change"
	EventSystemError         = "system_error"
	EventRNGHealthCheck      = "rng_health_check"
	EventSystemStartup       = "system_startup"
	EventLimitChange         = "limit_change"
	EventSelfExclusion       = "self_exclusion"
	EventSystemShutdown      = "system_shutdown"
)

// Service provides audit logging functionality
type Service struct {
	db  *sql.DB
	log *zap.Logger
}

// New creates a new audit service
func New(db *sql.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log.Named("audit")}
}

// LogEvent records a significant event
func (s *Service) LogEvent(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var data interface{}
	if len(event.Data) > 0 {
		data = string(event.Data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, type, severity, timestamp, player_id, session_id, description, data, ip_address, component)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, event.ID, event.Type, event.Severity, event.Timestamp, event.PlayerID, event.SessionID,
		event.Description, data, event.IPAddress, event.Component)

	return err
}

// Log is a convenience method for logging events
func (s *Service) Log(ctx context.Context, eventType string, severity domain.EventSeverity, description string, data interface{}, opts ...EventOption) error {
	event := &domain.AuditEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Severity:    severity,
		Timestamp:   time.Now().UTC(),
		Description: description,
		Component:   "cascade-rgs",
	}

	if data != nil {
		jsonData, err := json.Marshal(data)
		if err == nil {
			event.Data = jsonData
		}
	}

	for _, opt := range opts {
		opt(event)
	}

	if err := s.LogEvent(ctx, event); err != nil {
		s.log.Error("failed to record audit event",
			zap.String("type", eventType),
			zap.String("severity", string(severity)),
			zap.Error(err))
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// EventOption is a functional option for configuring audit events
type EventOption func(*domain.AuditEvent)

// WithPlayer sets the player ID for the event
func WithPlayer(playerID string) EventOption {
	return func(e *domain.AuditEvent) {
		e.PlayerID = &playerID
	}
}

// WithSession sets the session ID for the event
func WithSession(sessionID string) EventOption {
	return func(e *domain.AuditEvent) {
		e.SessionID = &sessionID
	}
}

// WithIP sets the IP address for the event
func WithIP(ip string) EventOption {
	return func(e *domain.AuditEvent) {
		e.IPAddress = ip
	}
}

// WithComponent sets the component for the event
func WithComponent(component string) EventOption {
	return func(e *domain.AuditEvent) {
		e.Component = component
	}
}

// GetEvents retrieves audit events with optional filtering
func (s *Service) GetEvents(ctx context.Context, filter *EventFilter) ([]*domain.AuditEvent, error) {
	query := `SELECT id, type, severity, timestamp, player_id, session_id, description, data, ip_address, component 
			  FROM audit_events WHERE 1=1`
	args := []interface{}{}
	paramIdx := 1

	if filter != nil {
		if filter.PlayerID != "" {
			query += fmt.Sprintf(" AND player_id = $%d", paramIdx)
			args = append(args, filter.PlayerID)
			paramIdx++
		}
		if filter.Type != "" {
			query += fmt.Sprintf(" AND type = $%d", paramIdx)
			args = append(args, filter.Type)
			paramIdx++
		}
		if !filter.From.IsZero() {
			query += fmt.Sprintf(" AND timestamp >= $%d", paramIdx)
			args = append(args, filter.From)
			paramIdx++
		}
		if !filter.To.IsZero() {
			query += fmt.Sprintf(" AND timestamp <= $%d", paramIdx)
			args = append(args, filter.To)
			paramIdx++
		}
	}

	query += " ORDER BY timestamp DESC"

	if filter != nil && filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", paramIdx)
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.AuditEvent
	for rows.Next() {
		var event domain.AuditEvent
		var playerID, sessionID, data, ip sql.NullString

		err := rows.Scan(&event.ID, &event.Type, &event.Severity, &event.Timestamp,
			&playerID, &sessionID, &event.Description, &data, &ip, &event.Component)
		if err != nil {
			return nil, err
		}

		if playerID.Valid {
			event.PlayerID = &playerID.String
		}
		if sessionID.Valid {
			event.SessionID = &sessionID.String
		}
		if data.Valid {
			event.Data = json.RawMessage(data.String)
		}
		event.IPAddress = ip.String

		events = append(events, &event)
	}

	return events, rows.Err()
}

// EventFilter defines criteria for filtering audit events
type EventFilter struct {
	PlayerID string
	Type     string
	From     time.Time
	To       time.Time
	Limit    int
}
