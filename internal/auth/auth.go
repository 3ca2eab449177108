package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"muzikuj/internal/db"
	"muzikuj/internal/models"
)

const sessionCookie = "muzikuj_session"

type Manager struct {
	db     *sqlx.DB
	maxAge time.Duration
	secure bool
}

func NewManager(db *sqlx.DB, maxAge time.Duration, secure bool) *Manager {
	return &Manager{db: db, maxAge: maxAge, secure: secure}
}

// Create starts a new session for userID and prunes its expired ones.
func (m *Manager) Create(ctx context.Context, w http.ResponseWriter, userID int64) error {
	now := db.Now()
	if _, err := m.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ? AND expires_at <= ?`, userID, now); err != nil {
		return err
	}
	id := uuid.New().String()
	expires := now.Add(m.maxAge)

	_, err := m.db.ExecContext(ctx, `INSERT INTO sessions(id,user_id,expires_at) VALUES(?,?,?)`, id, userID, expires)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
	return nil
}

func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) {
	c, _ := r.Cookie(sessionCookie)
	if c != nil && c.Value != "" {
		m.db.ExecContext(r.Context(), `DELETE FROM sessions WHERE id = ?`, c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		Expires:  time.Unix(0, 0),
	})
}

// DestroyAll ends every session of userID, used after a password change or account erase.
func (m *Manager) DestroyAll(ctx context.Context, userID int64) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

func (m *Manager) CurrentUserID(r *http.Request) (int64, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return 0, false
	}
	var s struct {
		UserID    int64     `db:"user_id"`
		ExpiresAt time.Time `db:"expires_at"`
	}
	err = m.db.GetContext(r.Context(), &s, `SELECT user_id, expires_at FROM sessions WHERE id = ?`, c.Value)
	if err != nil || time.Now().After(s.ExpiresAt) {
		return 0, false
	}
	return s.UserID, true
}

// CurrentUser loads the logged-in user. Deleted or deactivated accounts count as anonymous.
func (m *Manager) CurrentUser(r *http.Request) (*models.User, error) {
	uid, ok := m.CurrentUserID(r)
	if !ok {
		return nil, nil
	}
	var u models.User
	err := m.db.GetContext(r.Context(), &u, `SELECT * FROM users WHERE id = ?`, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if u.IsDeleted || !u.Active {
		return nil, nil
	}
	return &u, nil
}
