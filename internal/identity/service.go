package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"agora/internal/models"
	"agora/internal/storage"
)

const (
	tokenIssuer   = "agora-api"
	tokenAudience = "agora-client"
	tokenTTL      = time.Hour * 24 * 7

	// reauthWindow bounds how old a session may be before destructive
	// account operations demand a fresh sign-in.
	reauthWindow = time.Minute * 5
)

// Service is the local Provider implementation. Accounts are held in memory
// and mirrored to a storage blob under storage.KeyAccounts.
type Service struct {
	mu       sync.RWMutex
	accounts map[string]*Account // keyed by user id
	byEmail  map[string]string   // lowercased email -> user id

	store  storage.Store
	secret []byte
	now    func() time.Time
}

// NewService loads any persisted accounts and returns a ready provider.
func NewService(ctx context.Context, store storage.Store, jwtSecret string) (*Service, error) {
	if jwtSecret == "" {
		return nil, fmt.Errorf("identity: jwt secret not configured")
	}
	s := &Service{
		accounts: make(map[string]*Account),
		byEmail:  make(map[string]string),
		store:    store,
		secret:   []byte(jwtSecret),
		now:      time.Now,
	}

	raw, err := store.Load(ctx, storage.KeyAccounts)
	if err != nil {
		if err == storage.ErrNoValue {
			return s, nil
		}
		return nil, fmt.Errorf("identity: load accounts: %w", err)
	}
	var persisted []Account
	if err := json.Unmarshal(raw, &persisted); err != nil {
		// A corrupt blob is discarded, not fatal.
		return s, nil
	}
	for i := range persisted {
		a := persisted[i]
		s.accounts[a.UserID] = &a
		s.byEmail[strings.ToLower(a.Email)] = a.UserID
	}
	return s, nil
}

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (Account, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return Account{}, "", models.NewValidationError("a valid email is required")
	}
	if len(password) < 8 {
		return Account{}, "", models.NewValidationError("password must be at least 8 characters")
	}
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, "", models.NewInternalError(err)
	}

	s.mu.Lock()
	if _, taken := s.byEmail[strings.ToLower(email)]; taken {
		s.mu.Unlock()
		return Account{}, "", models.NewValidationError("email is already registered")
	}
	now := s.now().UTC()
	acct := &Account{
		UserID:       NewUserID(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    now,
		LastLoginAt:  now,
	}
	s.accounts[acct.UserID] = acct
	s.byEmail[strings.ToLower(email)] = acct.UserID
	out := *acct
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		return Account{}, "", err
	}
	token, err := s.generateToken(out.UserID, out.DisplayName)
	if err != nil {
		return Account{}, "", err
	}
	return out, token, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Account, string, error) {
	s.mu.Lock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		s.mu.Unlock()
		return Account{}, "", models.NewUnauthorizedError("invalid email or password")
	}
	acct := s.accounts[id]
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		s.mu.Unlock()
		return Account{}, "", models.NewUnauthorizedError("invalid email or password")
	}
	acct.LastLoginAt = s.now().UTC()
	out := *acct
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		return Account{}, "", err
	}
	token, err := s.generateToken(out.UserID, out.DisplayName)
	if err != nil {
		return Account{}, "", err
	}
	return out, token, nil
}

func (s *Service) Verify(ctx context.Context, tokenString string) (Account, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithAudience(tokenAudience))
	if err != nil || !token.Valid {
		return Account{}, models.NewUnauthorizedError("invalid or expired token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Account{}, models.NewUnauthorizedError("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Account{}, models.NewUnauthorizedError("token has no subject")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[sub]
	if !ok {
		return Account{}, models.NewUnauthorizedError("account no longer exists")
	}
	return *acct, nil
}

func (s *Service) SetDisplayName(ctx context.Context, userID, name string) error {
	if name == "" {
		return models.NewValidationError("display name is required")
	}
	s.mu.Lock()
	acct, ok := s.accounts[userID]
	if !ok {
		s.mu.Unlock()
		return models.NewNotFoundError("account", userID)
	}
	acct.DisplayName = name
	s.mu.Unlock()
	return s.persist(ctx)
}

// DeleteCurrentUser removes the account. Deletion is only honored inside
// the reauth window after the last sign-in; outside it the caller must
// sign in again first.
func (s *Service) DeleteCurrentUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	acct, ok := s.accounts[userID]
	if !ok {
		s.mu.Unlock()
		return models.NewNotFoundError("account", userID)
	}
	if s.now().UTC().Sub(acct.LastLoginAt) > reauthWindow {
		s.mu.Unlock()
		return models.NewReauthRequiredError()
	}
	delete(s.accounts, userID)
	delete(s.byEmail, strings.ToLower(acct.Email))
	s.mu.Unlock()
	return s.persist(ctx)
}

// Lookup returns the account for a user id.
func (s *Service) Lookup(userID string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[userID]
	if !ok {
		return Account{}, models.NewNotFoundError("account", userID)
	}
	return *acct, nil
}

func (s *Service) persist(ctx context.Context) error {
	s.mu.RLock()
	all := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		all = append(all, *a)
	}
	s.mu.RUnlock()

	raw, err := json.Marshal(all)
	if err != nil {
		return models.NewInternalError(err)
	}
	if err := s.store.Save(ctx, storage.KeyAccounts, raw); err != nil {
		return models.NewExternalError("persist accounts", err)
	}
	return nil
}

func (s *Service) generateToken(userID, displayName string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":      userID,
		"username": displayName,
		"iss":      tokenIssuer,
		"aud":      tokenAudience,
		"exp":      now.Add(tokenTTL).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      fmt.Sprintf("%d-%s", now.Unix(), uuid.New().String()[:8]),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return signed, nil
}
