package impl

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"cookbook/config"
	"cookbook/internal/domain/entity"
	domainerrors "cookbook/internal/domain/errors"
	"cookbook/internal/domain/repository"
	"cookbook/internal/infra/auth"
	"cookbook/internal/infra/metrics"
	"cookbook/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memoryUserStore is an in-memory UserRepository and TransactionManager.
type memoryUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]entity.User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[uuid.UUID]entity.User)}
}

func (s *memoryUserStore) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	return fn(s)
}

func (s *memoryUserStore) UserRepo() repository.UserRepository {
	return s
}

func (s *memoryUserStore) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return &user, nil
}

func (s *memoryUserStore) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email {
			return &user, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (s *memoryUserStore) Create(_ context.Context, user *entity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return domainerrors.ErrUserAlreadyExists.WrapMessage("email already exists")
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.Must(uuid.NewV7())
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	user.RefreshTokenHash = nil
	s.users[user.ID] = *user

	return nil
}

func (s *memoryUserStore) Update(_ context.Context, user *entity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	stored.Name, stored.Email, stored.PasswordHash = user.Name, user.Email, user.PasswordHash
	stored.UpdatedAt = time.Now()
	s.users[user.ID] = stored

	return nil
}

func (s *memoryUserStore) UpdateRefreshTokenHash(_ context.Context, id uuid.UUID, hash *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[id]
	if !ok {
		return nil
	}
	stored.RefreshTokenHash = hash
	s.users[id] = stored

	return nil
}

func (s *memoryUserStore) RotateRefreshTokenHash(_ context.Context, id uuid.UUID, expected, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[id]
	if !ok || stored.RefreshTokenHash == nil || *stored.RefreshTokenHash != expected {
		return repository.ErrRefreshTokenStale
	}
	stored.RefreshTokenHash = &next
	s.users[id] = stored

	return nil
}

func (s *memoryUserStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(s.users, id)

	return nil
}

type sessionHarness struct {
	store   *memoryUserStore
	auth    usecase.AuthUsecase
	profile usecase.ProfileUsecase
}

func newSessionHarness(t *testing.T, refreshTTL time.Duration) sessionHarness {
	t.Helper()

	store := newMemoryUserStore()
	hasher := auth.NewBcryptHasherWithCost(bcrypt.MinCost, config.PasswordStrengthConfig{
		MinLength:        8,
		MaxLength:        72,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumbers:   true,
	})
	tokens, err := auth.NewJWTServiceWithTTL("access-secret", "refresh-secret", 15*time.Minute, refreshTTL)
	require.NoError(t, err)

	authMetrics := metrics.NoopAuthMetrics{}

	return sessionHarness{
		store: store,
		auth: NewAuthService(AuthServiceParams{
			TxManager:    store,
			UserRepo:     store,
			Hasher:       hasher,
			TokenService: tokens,
			Metrics:      authMetrics,
			Logger:       newDiscardLogger(),
		}),
		profile: NewProfileService(ProfileServiceParams{
			TxManager: store,
			UserRepo:  store,
			Hasher:    hasher,
			Metrics:   authMetrics,
			Logger:    newDiscardLogger(),
		}),
	}
}

func requireUnauthorized(t *testing.T, err error) {
	t.Helper()

	require.Error(t, err)
	assert.Equal(t, 401, domainerrors.StatusOf(err))
}

func TestSessionScenario_RegisterRefreshReplayLogout(t *testing.T) {
	h := newSessionHarness(t, 7*24*time.Hour)
	ctx := context.Background()

	pairA, err := h.auth.Register(ctx, &usecase.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)
	require.NotNil(t, pairA.User)
	aliceID := pairA.User.ID

	pairB, err := h.auth.RefreshToken(ctx, &usecase.RefreshTokenInput{RefreshToken: pairA.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, pairA.RefreshToken, pairB.RefreshToken)
	assert.NotEqual(t, pairA.AccessToken, pairB.AccessToken)
	assert.Nil(t, pairB.User)

	_, err = h.auth.RefreshToken(ctx, &usecase.RefreshTokenInput{RefreshToken: pairA.RefreshToken})
	requireUnauthorized(t, err)

	require.NoError(t, h.auth.Logout(ctx, aliceID))

	_, err = h.auth.RefreshToken(ctx, &usecase.RefreshTokenInput{RefreshToken: pairB.RefreshToken})
	requireUnauthorized(t, err)
}

func TestSessionScenario_StoredHashIsNotTheToken(t *testing.T) {
	h := newSessionHarness(t, time.Hour)
	ctx := context.Background()

	out, err := h.auth.Register(ctx, &usecase.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)

	stored, err := h.store.FindByID(ctx, out.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RefreshTokenHash)
	assert.NotEqual(t, out.RefreshToken, *stored.RefreshTokenHash)
	assert.NotEqual(t, "Passw0rd", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("Passw0rd")))
}

func TestSessionScenario_DuplicateEmailConflicts(t *testing.T) {
	h := newSessionHarness(t, time.Hour)
	ctx := context.Background()

	_, err := h.auth.Register(ctx, &usecase.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)

	for _, password := range []string{"Passw0rd", "Different1"} {
		_, err = h.auth.Register(ctx, &usecase.RegisterInput{Name: "Mallory", Email: "alice@example.com", Password: password})
		require.Error(t, err)
		assert.ErrorIs(t, err, domainerrors.ErrUserAlreadyExists)
		assert.Equal(t, 409, domainerrors.StatusOf(err))
	}
}

func TestSessionScenario_RegisterPasswordBounds(t *testing.T) {
	h := newSessionHarness(t, time.Hour)
	ctx := context.Background()

	// Registration only needs a non-empty password.
	out, err := h.auth.Register(ctx, &usecase.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "a"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.RefreshToken)

	// 40 runes, 80 bytes: past bcrypt's limit.
	_, err = h.auth.Register(ctx, &usecase.RegisterInput{Name: "Bob", Email: "bob@example.com", Password: strings.Repeat("é", 40)})
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.ErrPasswordStrength))
	assert.Equal(t, 400, domainerrors.StatusOf(err))

	_, err = h.store.FindByEmail(ctx, "bob@example.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestSessionScenario_LoginThenRefreshOnce(t *testing.T) {
	h := newSessionHarness(t, time.Hour)
	ctx := context.Background()

	_, err := h.auth.Register(ctx, &usecase.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)

	login, err := h.auth.Login(ctx, &usecase.LoginInput{Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)

	_, err = h.auth.RefreshToken(ctx, &usecase.RefreshTokenInput{RefreshToken: login.RefreshToken})
	require.NoError(t, err)

	_, err = h.auth.RefreshToken(ctx, &usecase.RefreshTokenInput{RefreshToken: login.RefreshToken})
	requireUnauthorized(t, err)
}

func TestSessionScenario_LoginReplacesPreviousSession(t *testing.T) {
	h := newSessionHarness(t, time.Hour)
	ctx := context.Background()

	registered, err := h.auth.Register(ctx, &usecase.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)

	_, err = h.auth.Login(ctx, &usecase.LoginInput{Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)

	_, err = h.auth.RefreshToken(ctx, &usecase.RefreshTokenInput{RefreshToken: registered.RefreshToken})
	requireUnauthorized(t, err)
}

func TestSessionScenario_LoginFailuresLeaveSessionUntouched(t *testing.T) {
	h := newSessionHarness(t, time.Hour)
	ctx := context.Background()

	registered, err := h.auth.Register(ctx, &usecase.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)

	_, wrongPassword := h.auth.Login(ctx, &usecase.LoginInput{Email: "alice@example.com", Password: "nope"})
	_, unknownEmail := h.auth.Login(ctx, &usecase.LoginInput{Email: "nobody@example.com", Password: "Passw0rd"})
	requireUnauthorized(t, wrongPassword)
	requireUnauthorized(t, unknownEmail)

	wrongAppErr, _ := domainerrors.AsAppError(wrongPassword)
	unknownAppErr, _ := domainerrors.AsAppError(unknownEmail)
	assert.Equal(t, wrongAppErr.Message(), unknownAppErr.Message())

	_, err = h.auth.RefreshToken(ctx, &usecase.RefreshTokenInput{RefreshToken: registered.RefreshToken})
	assert.NoError(t, err)
}

func TestSessionScenario_ExpiredRefreshToken(t *testing.T) {
	h := newSessionHarness(t, -time.Minute)
	ctx := context.Background()

	out, err := h.auth.Register(ctx, &usecase.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)

	_, err = h.auth.RefreshToken(ctx, &usecase.RefreshTokenInput{RefreshToken: out.RefreshToken})
	requireUnauthorized(t, err)
}

func TestSessionScenario_TamperedAndMisusedTokens(t *testing.T) {
	h := newSessionHarness(t, time.Hour)
	ctx := context.Background()

	out, err := h.auth.Register(ctx, &usecase.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)

	// Flip the first signature character; every bit of it is significant.
	tampered := []byte(out.RefreshToken)
	sigStart := strings.LastIndex(out.RefreshToken, ".") + 1
	if tampered[sigStart] == 'A' {
		tampered[sigStart] = 'B'
	} else {
		tampered[sigStart] = 'A'
	}

	for name, token := range map[string]string{
		"tampered signature": string(tampered),
		"access token":       out.AccessToken,
		"garbage":            "not-a-jwt",
		"empty":              "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.auth.RefreshToken(ctx, &usecase.RefreshTokenInput{RefreshToken: token})
			requireUnauthorized(t, err)
		})
	}

	// The genuine token still works after the failed attempts.
	_, err = h.auth.RefreshToken(ctx, &usecase.RefreshTokenInput{RefreshToken: out.RefreshToken})
	assert.NoError(t, err)
}

func TestSessionScenario_LogoutIsIdempotent(t *testing.T) {
	h := newSessionHarness(t, time.Hour)
	ctx := context.Background()

	out, err := h.auth.Register(ctx, &usecase.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)

	require.NoError(t, h.auth.Logout(ctx, out.User.ID))
	require.NoError(t, h.auth.Logout(ctx, out.User.ID))
	require.NoError(t, h.auth.Logout(ctx, uuid.New()))

	stored, err := h.store.FindByID(ctx, out.User.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasActiveSession())
}

func TestSessionScenario_ConcurrentRefreshSucceedsOnce(t *testing.T) {
	h := newSessionHarness(t, time.Hour)
	ctx := context.Background()

	out, err := h.auth.Register(ctx, &usecase.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.auth.RefreshToken(ctx, &usecase.RefreshTokenInput{RefreshToken: out.RefreshToken}); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestSessionScenario_ChangePasswordEndsSession(t *testing.T) {
	h := newSessionHarness(t, time.Hour)
	ctx := context.Background()

	out, err := h.auth.Register(ctx, &usecase.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)

	err = h.profile.ChangePassword(ctx, out.User.ID, &usecase.ChangePasswordInput{CurrentPassword: "Passw0rd", NewPassword: "weak"})
	assert.True(t, domainerrors.HasCode(err, domainerrors.ErrPasswordStrength))

	require.NoError(t, h.profile.ChangePassword(ctx, out.User.ID, &usecase.ChangePasswordInput{CurrentPassword: "Passw0rd", NewPassword: "N3wPassword"}))

	_, err = h.auth.RefreshToken(ctx, &usecase.RefreshTokenInput{RefreshToken: out.RefreshToken})
	requireUnauthorized(t, err)

	_, err = h.auth.Login(ctx, &usecase.LoginInput{Email: "alice@example.com", Password: "Passw0rd"})
	requireUnauthorized(t, err)

	_, err = h.auth.Login(ctx, &usecase.LoginInput{Email: "alice@example.com", Password: "N3wPassword"})
	assert.NoError(t, err)
}

func TestSessionScenario_DeletedAccountCannotRefresh(t *testing.T) {
	h := newSessionHarness(t, time.Hour)
	ctx := context.Background()

	out, err := h.auth.Register(ctx, &usecase.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)

	require.NoError(t, h.profile.DeleteAccount(ctx, out.User.ID))

	_, err = h.auth.RefreshToken(ctx, &usecase.RefreshTokenInput{RefreshToken: out.RefreshToken})
	requireUnauthorized(t, err)

	_, err = h.profile.GetProfile(ctx, out.User.ID)
	assert.ErrorIs(t, err, domainerrors.ErrUserNotFound)
}

func TestSessionScenario_RepresentationsCarryNoHashes(t *testing.T) {
	h := newSessionHarness(t, time.Hour)
	ctx := context.Background()

	registered, err := h.auth.Register(ctx, &usecase.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)
	loggedIn, err := h.auth.Login(ctx, &usecase.LoginInput{Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)
	profile, err := h.profile.GetProfile(ctx, registered.User.ID)
	require.NoError(t, err)

	for name, value := range map[string]any{
		"register": registered,
		"login":    loggedIn,
		"profile":  profile,
	} {
		t.Run(name, func(t *testing.T) {
			raw, err := json.Marshal(value)
			require.NoError(t, err)

			var fields map[string]any
			require.NoError(t, json.Unmarshal(raw, &fields))
			if user, ok := fields["user"].(map[string]any); ok {
				fields = user
			}

			assert.Contains(t, fields, "email")
			assert.NotContains(t, fields, "passwordHash")
			assert.NotContains(t, fields, "refreshTokenHash")
			assert.NotContains(t, fields, "PasswordHash")
			assert.NotContains(t, fields, "RefreshTokenHash")
		})
	}
}
