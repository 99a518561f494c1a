package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-timetable-notifier/internal/repo"
)

// newStore opens a unique in-memory database with the full schema.
func newStore(t *testing.T) *repo.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return repo.NewStore(db)
}

type sentMessage struct {
	userRef string
	text    string
}

// fakeSender records deliveries; errs maps a user ref to the error to return.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	errs map[string]error
}

func (s *fakeSender) Send(_ context.Context, userRef, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[userRef]; err != nil {
		return err
	}
	s.sent = append(s.sent, sentMessage{userRef: userRef, text: text})
	return nil
}

func (s *fakeSender) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

func (s *fakeSender) setErr(userRef string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errs == nil {
		s.errs = map[string]error{}
	}
	s.errs[userRef] = err
}
