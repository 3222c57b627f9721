package auth

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestTokenRoundTrip(t *testing.T) {
	s := NewService(nil, "test-secret", time.Hour)

	token, err := s.generateToken("user-42", "alice@example.com")
	require.NoError(t, err)

	t.Run("should verify its own token", func(t *testing.T) {
		userID, err := s.VerifyToken(token)
		require.NoError(t, err)
		assert.Equal(t, "user-42", userID)
	})

	t.Run("should accept the Bearer prefix", func(t *testing.T) {
		userID, err := s.VerifyToken("Bearer " + token)
		require.NoError(t, err)
		assert.Equal(t, "user-42", userID)
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		other := NewService(nil, "other-secret", time.Hour)
		_, err := other.VerifyToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("should reject garbage", func(t *testing.T) {
		_, err := s.VerifyToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokenExpiry(t *testing.T) {
	s := NewService(nil, "test-secret", -time.Minute)

	token, err := s.generateToken("user-42", "alice@example.com")
	require.NoError(t, err)

	_, err = s.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRegister(t *testing.T) {
	t.Run("should insert a new user", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)")).
			WithArgs("alice@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (id, email, password_hash, created_at)")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		s := NewService(db, "test-secret", time.Hour)
		user, err := s.Register(context.Background(), "alice@example.com", "hunter22")
		require.NoError(t, err)

		assert.Equal(t, "alice@example.com", user.Email)
		assert.NotEmpty(t, user.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should reject a duplicate email", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)")).
			WithArgs("alice@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		s := NewService(db, "test-secret", time.Hour)
		_, err = s.Register(context.Background(), "alice@example.com", "hunter22")
		assert.ErrorIs(t, err, ErrEmailExists)
	})
}

// The sqlmock expectations above pin the statement text; this pins the other
// side, so renaming a column in either place fails a test instead of the
// first register on a fresh deploy.
func TestSchemaMatchesQueries(t *testing.T) {
	schema, err := os.ReadFile(filepath.Join("..", "..", "deploy", "schema.sql"))
	require.NoError(t, err)

	ddl := string(schema)
	for _, column := range []string{"id", "email", "password_hash", "created_at"} {
		assert.Contains(t, ddl, column, "users table is missing column %q", column)
	}
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("should return a verifiable token", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, password_hash FROM users WHERE email = $1")).
			WithArgs("alice@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("user-42", string(hash)))

		s := NewService(db, "test-secret", time.Hour)
		token, err := s.Login(context.Background(), "alice@example.com", "hunter22")
		require.NoError(t, err)

		userID, err := s.VerifyToken(token)
		require.NoError(t, err)
		assert.Equal(t, "user-42", userID)
	})

	t.Run("should reject a wrong password", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, password_hash FROM users WHERE email = $1")).
			WithArgs("alice@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("user-42", string(hash)))

		s := NewService(db, "test-secret", time.Hour)
		_, err = s.Login(context.Background(), "alice@example.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidPassword)
	})

	t.Run("should report an unknown user", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, password_hash FROM users WHERE email = $1")).
			WithArgs("bob@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}))

		s := NewService(db, "test-secret", time.Hour)
		_, err = s.Login(context.Background(), "bob@example.com", "hunter22")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}
