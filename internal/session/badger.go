package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/asiatek/partsbot/internal/logger"
)

const keyPrefix = "session:"

// BadgerManager persists sessions in a local Badger database so an active
// conversation survives a process restart. Entries carry a TTL, stale
// sessions expire on their own.
type BadgerManager struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerManager opens (or creates) the store in dir.
func NewBadgerManager(dir string, ttl time.Duration) (*BadgerManager, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &BadgerManager{db: db, ttl: ttl}, nil
}

// NewBadgerManagerInMemory opens an ephemeral store, used in tests.
func NewBadgerManagerInMemory(ttl time.Duration) (*BadgerManager, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &BadgerManager{db: db, ttl: ttl}, nil
}

func sessionKey(userID int64) []byte {
	return []byte(keyPrefix + strconv.FormatInt(userID, 10))
}

func (m *BadgerManager) Get(_ context.Context, userID int64) (*Session, error) {
	var data []byte
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(userID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	s := &Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func (m *BadgerManager) Save(_ context.Context, s *Session) error {
	if s == nil || s.UserID == 0 {
		return errors.New("session: save requires a user id")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(sessionKey(s.UserID), data).WithTTL(m.ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (m *BadgerManager) Clear(_ context.Context, userID int64) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey(userID))
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (m *BadgerManager) InProgress(ctx context.Context, userID int64) bool {
	s, err := m.Get(ctx, userID)
	if err != nil {
		logger.Error(ctx, "bot", "session.lookup.fail",
			slog.String("err", err.Error()),
		)
		return false
	}
	return s.Active()
}

// Close flushes and closes the underlying store.
func (m *BadgerManager) Close() error {
	return m.db.Close()
}
