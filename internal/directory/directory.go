// Package directory is the MySQL-backed client that the rest of the
// service asks for equipment, card, and user facts: a set of typed
// operations against the backing store, each one collapsing any failure
// to the documented safe default rather than letting a SQL error reach
// the session FSM.
package directory

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/go-sql-driver/mysql"

	"github.com/thenewsboston-makerspace/portalboxd/internal/config"
)

// CardKind classifies a UID by what it is registered as: fixed per card,
// Unknown (-1) the sentinel for an absent or unrecognized UID, matching
// the legacy wire form.
type CardKind int

const (
	KindUnknown  CardKind = -1
	KindShutdown CardKind = 0
	KindProxy    CardKind = 1
	KindTraining CardKind = 2
	KindUser     CardKind = 3
)

func (k CardKind) String() string {
	switch k {
	case KindShutdown:
		return "shutdown"
	case KindProxy:
		return "proxy"
	case KindTraining:
		return "training"
	case KindUser:
		return "user"
	default:
		return "unknown"
	}
}

// Profile is a box's equipment assignment.
type Profile struct {
	EquipmentID     int
	EquipmentTypeID int
	EquipmentType   string
	LocationID      int
	Location        string
	TimeoutMinutes  int
}

// ConnMode selects between a long-lived pooled connection and an
// open/close-per-call connection, mirroring Database.py's
// use_persistent_connection switch.
type ConnMode int

const (
	Persistent ConnMode = iota
	PerCall
)

// sqlConn is the slice of *sql.DB this package drives, broken out so
// tests can substitute an in-memory fake.
type sqlConn interface {
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
	Ping() error
	Close() error
}

// Client is the directory connection, in either connection mode.
type Client struct {
	mode       ConnMode
	dsn        string
	opener     func(dsn string) (sqlConn, error)
	persistent sqlConn
	logger     *slog.Logger
}

func defaultOpener(dsn string) (sqlConn, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Open builds a DSN from cfg and, for Persistent mode, opens and pings
// the pooled connection immediately — a ping failure here is what
// cmd/portalboxd maps to exit code 1.
func Open(cfg config.Database, mode ConnMode, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := buildDSN(cfg)
	c := &Client{mode: mode, dsn: dsn, opener: defaultOpener, logger: logger}

	if mode == Persistent {
		conn, err := c.opener(dsn)
		if err != nil {
			return nil, fmt.Errorf("directory: open: %w", err)
		}
		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("directory: ping: %w", err)
		}
		c.persistent = conn
	}
	return c, nil
}

func buildDSN(cfg config.Database) string {
	port := cfg.Port
	if port == "" {
		port = "3306"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", cfg.User, cfg.Password, cfg.Host, port, cfg.Name)
}

// withConn executes fn against a live connection, honoring ConnMode, and
// returns whatever error either opening or fn produced.
func (c *Client) withConn(fn func(sqlConn) error) error {
	if c.mode == Persistent {
		if c.persistent == nil {
			return fmt.Errorf("directory: no persistent connection open")
		}
		return fn(c.persistent)
	}

	conn, err := c.opener(c.dsn)
	if err != nil {
		return fmt.Errorf("directory: open per-call connection: %w", err)
	}
	defer conn.Close()
	return fn(conn)
}

func (c *Client) Close() error {
	if c.persistent != nil {
		return c.persistent.Close()
	}
	return nil
}

// IsRegistered reports whether mac already has an equipment row.
func (c *Client) IsRegistered(mac string) bool {
	var count int
	err := c.withConn(func(conn sqlConn) error {
		return conn.QueryRow(`SELECT COUNT(*) FROM equipment WHERE mac_address = ?`, mac).Scan(&count)
	})
	if err != nil {
		c.logger.Warn("directory: is_registered failed", "mac", mac, "err", err)
		return false
	}
	return count > 0
}

// Register inserts an "out of service" equipment row for mac. Used only
// by the one-shot registration tool (cmd/registerbox).
func (c *Client) Register(mac string) bool {
	err := c.withConn(func(conn sqlConn) error {
		_, err := conn.Exec(`INSERT INTO equipment (mac_address, status) VALUES (?, 'out of service')`, mac)
		return err
	})
	if err != nil {
		c.logger.Warn("directory: register failed", "mac", mac, "err", err)
		return false
	}
	return true
}

// GetEquipmentProfile looks up the profile assigned to mac. ok is false
// both on a SQL error and on a genuine "no row" result — the session FSM
// (the Identify state) retries either way.
func (c *Client) GetEquipmentProfile(mac string) (profile Profile, ok bool) {
	err := c.withConn(func(conn sqlConn) error {
		row := conn.QueryRow(`
			SELECT e.id, e.equipment_type_id, et.name, e.location_id, l.name, et.timeout_minutes
			FROM equipment e
			JOIN equipment_types et ON et.id = e.equipment_type_id
			JOIN locations l ON l.id = e.location_id
			WHERE e.mac_address = ?`, mac)
		return row.Scan(&profile.EquipmentID, &profile.EquipmentTypeID, &profile.EquipmentType,
			&profile.LocationID, &profile.Location, &profile.TimeoutMinutes)
	})
	if err != nil {
		if err != sql.ErrNoRows {
			c.logger.Warn("directory: get_equipment_profile failed", "mac", mac, "err", err)
		}
		return Profile{}, false
	}
	return profile, true
}

// LogStarted writes a "Startup Complete" event row.
func (c *Client) LogStarted(equipmentID int) {
	err := c.withConn(func(conn sqlConn) error {
		_, err := conn.Exec(`INSERT INTO logs (equipment_id, event) VALUES (?, 'Startup Complete')`, equipmentID)
		return err
	})
	if err != nil {
		c.logger.Warn("directory: log_started failed", "equipment_id", equipmentID, "err", err)
	}
}

// LogShutdown writes a "Planned Shutdown" event row. cardID is nil for a
// SIGTERM/SIGINT shutdown with no shutdown card involved.
func (c *Client) LogShutdown(equipmentID int, cardID *uint32) {
	err := c.withConn(func(conn sqlConn) error {
		_, err := conn.Exec(`INSERT INTO logs (equipment_id, event, card_id) VALUES (?, 'Planned Shutdown', ?)`,
			equipmentID, cardID)
		return err
	})
	if err != nil {
		c.logger.Warn("directory: log_shutdown failed", "equipment_id", equipmentID, "err", err)
	}
}

// LogAccessAttempt records a session start via the logging stored
// procedure.
func (c *Client) LogAccessAttempt(card uint32, equipmentID int, success bool) {
	err := c.withConn(func(conn sqlConn) error {
		_, err := conn.Exec(`CALL log_access_attempt(?, ?, ?)`, card, equipmentID, success)
		return err
	})
	if err != nil {
		c.logger.Warn("directory: log_access_attempt failed", "card", card, "equipment_id", equipmentID, "err", err)
	}
}

// LogAccessCompletion records a session end via the logging stored
// procedure.
func (c *Client) LogAccessCompletion(card uint32, equipmentID int) {
	err := c.withConn(func(conn sqlConn) error {
		_, err := conn.Exec(`CALL log_access_completion(?, ?)`, card, equipmentID)
		return err
	})
	if err != nil {
		c.logger.Warn("directory: log_access_completion failed", "card", card, "equipment_id", equipmentID, "err", err)
	}
}

// GetCardType classifies uid, returning KindUnknown on any error or an
// absent row — the fail-closed policy every directory call follows.
func (c *Client) GetCardType(uid uint32) CardKind {
	var kind int
	err := c.withConn(func(conn sqlConn) error {
		return conn.QueryRow(`SELECT type FROM cards WHERE card_id = ?`, uid).Scan(&kind)
	})
	if err != nil {
		if err != sql.ErrNoRows {
			c.logger.Warn("directory: get_card_type failed", "uid", uid, "err", err)
		}
		return KindUnknown
	}
	return CardKind(kind)
}

// IsTrainingCardFor reports whether uid is a valid training card for the
// given equipment type.
func (c *Client) IsTrainingCardFor(uid uint32, equipmentTypeID int) bool {
	var count int
	err := c.withConn(func(conn sqlConn) error {
		return conn.QueryRow(`
			SELECT COUNT(*) FROM training_cards
			WHERE card_id = ? AND equipment_type_id = ?`, uid, equipmentTypeID).Scan(&count)
	})
	if err != nil {
		c.logger.Warn("directory: is_training_card_for failed", "uid", uid, "err", err)
		return false
	}
	return count > 0
}

// hasTrainingAuthorization reports whether cardUID's holder has been
// granted an authorization record for equipmentTypeID — a user-level
// "completed training for this equipment type" grant, tracked in a
// distinct authorizations table keyed by user, not by whether cardUID
// itself happens to be registered as a training card. This is the check
// IsUserAuthorized's requires_training branch needs; IsTrainingCardFor
// answers an unrelated question (is the presented UID itself a training
// card) used only by the GraceRemoval training-mode transition.
func (c *Client) hasTrainingAuthorization(cardUID uint32, equipmentTypeID int) bool {
	var count int
	err := c.withConn(func(conn sqlConn) error {
		return conn.QueryRow(`
			SELECT COUNT(*) FROM authorizations a
			JOIN cards c ON c.user_id = a.user_id
			WHERE c.card_id = ? AND a.equipment_type_id = ?`, cardUID, equipmentTypeID).Scan(&count)
	})
	if err != nil {
		c.logger.Warn("directory: is_user_authorized: training authorization lookup failed", "uid", cardUID, "err", err)
		return false
	}
	return count > 0
}

// IsUserAuthorized composes the requires_training/requires_payment policy.
// Open question (a): when requires_payment is set but requires_training is
// not, the legacy source checks only that the user has *any* payment row at
// all, not a payment for this specific equipment type. That behavior is
// preserved here — it is flagged as a likely defect in DESIGN.md rather
// than silently fixed.
func (c *Client) IsUserAuthorized(cardUID uint32, equipmentTypeID int) bool {
	var requiresTraining, requiresPayment bool
	err := c.withConn(func(conn sqlConn) error {
		return conn.QueryRow(`
			SELECT requires_training, requires_payment FROM equipment_types WHERE id = ?`,
			equipmentTypeID).Scan(&requiresTraining, &requiresPayment)
	})
	if err != nil {
		c.logger.Warn("directory: is_user_authorized: policy lookup failed", "equipment_type_id", equipmentTypeID, "err", err)
		return false
	}

	if requiresTraining {
		if !c.hasTrainingAuthorization(cardUID, equipmentTypeID) {
			return false
		}
	}
	if requiresPayment {
		var count int
		err := c.withConn(func(conn sqlConn) error {
			return conn.QueryRow(`SELECT COUNT(*) FROM payments WHERE card_id = ?`, cardUID).Scan(&count)
		})
		if err != nil {
			c.logger.Warn("directory: is_user_authorized: payment lookup failed", "uid", cardUID, "err", err)
			return false
		}
		if count == 0 {
			return false
		}
	}
	return true
}

// IsUserTrainer reports whether cardUID's holder is flagged as a trainer.
func (c *Client) IsUserTrainer(cardUID uint32) bool {
	var isTrainer bool
	err := c.withConn(func(conn sqlConn) error {
		return conn.QueryRow(`
			SELECT u.is_trainer FROM cards c JOIN users u ON u.id = c.user_id WHERE c.card_id = ?`,
			cardUID).Scan(&isTrainer)
	})
	if err != nil {
		c.logger.Warn("directory: is_user_trainer failed", "uid", cardUID, "err", err)
		return false
	}
	return isTrainer
}

// GetUser returns the name/email of cardUID's holder, used by the
// ForgottenCard email notification.
func (c *Client) GetUser(cardUID uint32) (name, email string, ok bool) {
	err := c.withConn(func(conn sqlConn) error {
		return conn.QueryRow(`
			SELECT u.name, u.email FROM cards c JOIN users u ON u.id = c.user_id WHERE c.card_id = ?`,
			cardUID).Scan(&name, &email)
	})
	if err != nil {
		if err != sql.ErrNoRows {
			c.logger.Warn("directory: get_user failed", "uid", cardUID, "err", err)
		}
		return "", "", false
	}
	return name, email, true
}
