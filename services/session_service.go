package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/douxbatter/storefront/config"
	"github.com/douxbatter/storefront/models"
	"github.com/douxbatter/storefront/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SessionCookieName is the HttpOnly cookie the admin token travels in.
const SessionCookieName = "admin_session"

type Session struct {
	ID        string    `json:"-"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionService authenticates the single shop admin. A session is a row in
// admin_sessions; the client holds a signed token naming that row.
type SessionService struct {
	db  *gorm.DB
	cfg config.AdminConfig
	now func() time.Time
}

func NewSessionService(db *gorm.DB, cfg config.AdminConfig) *SessionService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return &SessionService{db: db, cfg: cfg, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

func (s *SessionService) TTL() time.Duration { return s.cfg.SessionTTL }

// Login checks the admin password and opens a session.
func (s *SessionService) Login(ctx context.Context, password string) (*Session, error) {
	if s.cfg.Password == "" || s.cfg.SessionSecret == "" || !s.passwordMatches(password) {
		return nil, &AuthError{}
	}

	now := s.now().UTC()
	db := s.db.WithContext(ctx)

	if err := db.Where("expires_at <= ?", now).Delete(&models.AdminSession{}).Error; err != nil {
		utils.ErrorLogger.WithError(err).Warn("Failed to purge expired admin sessions")
	}

	row := models.AdminSession{
		ID:        uuid.NewString(),
		ExpiresAt: now.Add(s.cfg.SessionTTL),
		CreatedAt: now,
	}
	if err := db.Create(&row).Error; err != nil {
		return nil, storeErr("create admin session", err)
	}

	token, err := utils.SignSessionToken([]byte(s.cfg.SessionSecret), row.ID, now, row.ExpiresAt)
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithField("session", row.ID).Info("Admin logged in")
	return &Session{ID: row.ID, Token: token, ExpiresAt: row.ExpiresAt}, nil
}

// Verify accepts a token only if it is correctly signed and its session row
// still exists and has not expired.
func (s *SessionService) Verify(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" || s.cfg.SessionSecret == "" {
		return nil, &AuthError{}
	}

	now := s.now().UTC()
	id, err := utils.ParseSessionToken([]byte(s.cfg.SessionSecret), token, now)
	if err != nil {
		return nil, &AuthError{}
	}

	var row models.AdminSession
	err = s.db.WithContext(ctx).Where("id = ? AND expires_at > ?", id, now).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &AuthError{}
	}
	if err != nil {
		return nil, storeErr("find admin session", err)
	}

	return &Session{ID: row.ID, Token: token, ExpiresAt: row.ExpiresAt}, nil
}

// Logout ends the session named by token. Unknown or expired tokens are
// treated as already logged out.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	id, err := utils.ParseSessionToken([]byte(s.cfg.SessionSecret), strings.TrimSpace(token), s.now().UTC())
	if err != nil {
		return nil
	}
	if err := s.db.WithContext(ctx).Delete(&models.AdminSession{}, "id = ?", id).Error; err != nil {
		return storeErr("delete admin session", err)
	}
	utils.InfoLogger.WithField("session", id).Info("Admin logged out")
	return nil
}

// passwordMatches accepts a bcrypt hash or, failing that, a plain password
// compared in constant time.
func (s *SessionService) passwordMatches(password string) bool {
	stored := s.cfg.Password
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}
