package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"emcs/internal/platform/database"
)

type SQLiteStoreSuite struct {
	contractSuite
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreSuite))
}

func (s *SQLiteStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	db, err := database.OpenSQLite(s.ctx, ":memory:")
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })

	st := NewSQLite(db)
	s.Require().NoError(st.Migrate(s.ctx))
	s.store = st
}
