package auth_test

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bazaarlabs/bazaar/internal/auth"
	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/repository"
	"github.com/bazaarlabs/bazaar/pkg/session"
)

// fakeStore is an in-memory auth.Store.
type fakeStore struct {
	users    map[string]repository.User // keyed by ID
	byEmail  map[string]string
	attempts []attemptRow
	lookups  int
}

type attemptRow struct {
	userID  *string
	email   string
	success bool
	at      time.Time
}

func newFakeStore(users ...repository.User) *fakeStore {
	s := &fakeStore{
		users:   make(map[string]repository.User),
		byEmail: make(map[string]string),
	}
	for _, u := range users {
		s.users[u.ID] = u
		s.byEmail[u.Email] = u.ID
	}
	return s
}

func (s *fakeStore) FindUser(_ context.Context, userID string) (repository.User, error) {
	s.lookups++
	u, ok := s.users[userID]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *fakeStore) FindUserByEmail(_ context.Context, email string) (repository.User, error) {
	id, ok := s.byEmail[email]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	return s.users[id], nil
}

func (s *fakeStore) RecordLoginAttempt(_ context.Context, userID *string, email, _ string, success bool) error {
	s.attempts = append(s.attempts, attemptRow{userID: userID, email: email, success: success, at: time.Now()})
	return nil
}

func (s *fakeStore) CountRecentFailures(_ context.Context, userID string, window time.Duration) (int, error) {
	cutoff := time.Now().Add(-window)
	n := 0
	for _, a := range s.attempts {
		if a.userID != nil && *a.userID == userID && !a.success && a.at.After(cutoff) {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) LockUser(_ context.Context, userID string) error {
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.Status = repository.UserStatusLocked
	s.users[userID] = u
	return nil
}

func (s *fakeStore) UnlockUser(_ context.Context, userID string) error {
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if u.Status == repository.UserStatusLocked {
		u.Status = repository.UserStatusActive
		s.users[userID] = u
	}
	return nil
}

func activeUser(t *testing.T, role string) repository.User {
	t.Helper()
	hash, err := auth.HashPassword("s3cret-pass")
	require.NoError(t, err)
	return repository.User{
		ID:           "user-" + role,
		Name:         "Test " + role,
		Email:        role + "@example.com",
		PasswordHash: hash,
		Role:         role,
		Status:       repository.UserStatusActive,
	}
}

// newTestContext builds a context with an attached fresh session.
func newTestContext(t *testing.T, sessions *session.Manager, target string) *dispatch.Context {
	t.Helper()
	req := dispatch.NewRequest(http.MethodGet, target, dispatch.WithRemoteIP("203.0.113.7"))
	c := dispatch.NewContext(context.Background(), req, nil)
	sess, err := sessions.Create(context.Background())
	require.NoError(t, err)
	c.SetSession(sess)
	return c
}

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashPassword("correct horse battery")
	require.NoError(t, err)
	require.True(t, auth.VerifyPassword(hash, "correct horse battery"))
	require.False(t, auth.VerifyPassword(hash, "wrong"))
	require.False(t, auth.VerifyPassword("not-a-hash", "wrong"))
}

func TestAttempt(t *testing.T) {
	t.Parallel()

	t.Run("success binds user and rotates session token", func(t *testing.T) {
		t.Parallel()

		user := activeUser(t, repository.RoleCustomer)
		store := newFakeStore(user)
		sessions := session.NewManager(session.NewMemoryStore())
		identity := auth.New(store, sessions)

		c := newTestContext(t, sessions, "/login")
		before := c.Session().Token

		got, err := identity.Attempt(c, user.Email, "s3cret-pass")
		require.NoError(t, err)
		require.Equal(t, user.ID, got.ID)
		require.True(t, c.Session().IsAuthenticated())
		require.NotEqual(t, before, c.Session().Token)

		require.Len(t, store.attempts, 1)
		require.True(t, store.attempts[0].success)
	})

	t.Run("unknown email is invalid credentials", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore()
		sessions := session.NewManager(session.NewMemoryStore())
		identity := auth.New(store, sessions)

		c := newTestContext(t, sessions, "/login")
		_, err := identity.Attempt(c, "ghost@example.com", "whatever")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)

		// The probe is still recorded, without a user binding.
		require.Len(t, store.attempts, 1)
		require.Nil(t, store.attempts[0].userID)
	})

	t.Run("wrong password records a failure", func(t *testing.T) {
		t.Parallel()

		user := activeUser(t, repository.RoleCustomer)
		store := newFakeStore(user)
		sessions := session.NewManager(session.NewMemoryStore())
		identity := auth.New(store, sessions)

		c := newTestContext(t, sessions, "/login")
		_, err := identity.Attempt(c, user.Email, "wrong")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
		require.False(t, c.Session().IsAuthenticated())
	})

	t.Run("attempt after threshold is rejected despite correct password", func(t *testing.T) {
		t.Parallel()

		user := activeUser(t, repository.RoleCustomer)
		store := newFakeStore(user)
		sessions := session.NewManager(session.NewMemoryStore())
		identity := auth.New(store, sessions)

		for i := 0; i < 5; i++ {
			c := newTestContext(t, sessions, "/login")
			_, err := identity.Attempt(c, user.Email, "wrong-"+strconv.Itoa(i))
			require.ErrorIs(t, err, auth.ErrInvalidCredentials)
		}

		c := newTestContext(t, sessions, "/login")
		_, err := identity.Attempt(c, user.Email, "s3cret-pass")
		require.ErrorIs(t, err, auth.ErrAccountLocked)
		require.Equal(t, repository.UserStatusLocked, store.users[user.ID].Status)

		// Locked accounts stay rejected on subsequent tries.
		c = newTestContext(t, sessions, "/login")
		_, err = identity.Attempt(c, user.Email, "s3cret-pass")
		require.ErrorIs(t, err, auth.ErrAccountLocked)
	})

	t.Run("lock expires with the window", func(t *testing.T) {
		t.Parallel()

		user := activeUser(t, repository.RoleCustomer)
		store := newFakeStore(user)
		sessions := session.NewManager(session.NewMemoryStore())
		identity := auth.New(store, sessions)

		for i := 0; i < 5; i++ {
			c := newTestContext(t, sessions, "/login")
			_, err := identity.Attempt(c, user.Email, "wrong-"+strconv.Itoa(i))
			require.ErrorIs(t, err, auth.ErrInvalidCredentials)
		}

		c := newTestContext(t, sessions, "/login")
		_, err := identity.Attempt(c, user.Email, "s3cret-pass")
		require.ErrorIs(t, err, auth.ErrAccountLocked)
		require.Equal(t, repository.UserStatusLocked, store.users[user.ID].Status)

		// Age every recorded failure past the sliding window; the next
		// correct attempt unlocks the account and signs the user in.
		for i := range store.attempts {
			store.attempts[i].at = store.attempts[i].at.Add(-2 * time.Hour)
		}

		c = newTestContext(t, sessions, "/login")
		got, err := identity.Attempt(c, user.Email, "s3cret-pass")
		require.NoError(t, err)
		require.Equal(t, user.ID, got.ID)
		require.Equal(t, repository.UserStatusActive, store.users[user.ID].Status)
		require.True(t, c.Session().IsAuthenticated())
	})

	t.Run("stale failures outside the window do not lock", func(t *testing.T) {
		t.Parallel()

		user := activeUser(t, repository.RoleCustomer)
		store := newFakeStore(user)
		sessions := session.NewManager(session.NewMemoryStore())
		identity := auth.New(store, sessions, auth.WithLockoutWindow(time.Millisecond))

		uid := user.ID
		for i := 0; i < 5; i++ {
			store.attempts = append(store.attempts, attemptRow{
				userID: &uid,
				email:  user.Email,
				at:     time.Now().Add(-time.Minute),
			})
		}

		c := newTestContext(t, sessions, "/login")
		_, err := identity.Attempt(c, user.Email, "s3cret-pass")
		require.NoError(t, err)
	})

	t.Run("disabled account rejected with correct password", func(t *testing.T) {
		t.Parallel()

		user := activeUser(t, repository.RoleCustomer)
		user.Status = repository.UserStatusDisabled
		store := newFakeStore(user)
		sessions := session.NewManager(session.NewMemoryStore())
		identity := auth.New(store, sessions)

		c := newTestContext(t, sessions, "/login")
		_, err := identity.Attempt(c, user.Email, "s3cret-pass")
		require.ErrorIs(t, err, auth.ErrAccountDisabled)
	})
}

func TestCurrentUser(t *testing.T) {
	t.Parallel()

	t.Run("anonymous request has no identity", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore()
		sessions := session.NewManager(session.NewMemoryStore())
		identity := auth.New(store, sessions)

		c := newTestContext(t, sessions, "/account")
		_, ok := identity.CurrentUser(c)
		require.False(t, ok)
	})

	t.Run("resolution happens at most once per request", func(t *testing.T) {
		t.Parallel()

		user := activeUser(t, repository.RoleCustomer)
		store := newFakeStore(user)
		sessions := session.NewManager(session.NewMemoryStore())
		identity := auth.New(store, sessions)

		c := newTestContext(t, sessions, "/account")
		c.Session().SetUser(user.ID)

		for range 3 {
			got, ok := identity.CurrentUser(c)
			require.True(t, ok)
			require.Equal(t, user.ID, got.ID)
		}
		require.Equal(t, 1, store.lookups)
	})

	t.Run("vanished user degrades to anonymous and caches the miss", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore()
		sessions := session.NewManager(session.NewMemoryStore())
		identity := auth.New(store, sessions)

		c := newTestContext(t, sessions, "/account")
		c.Session().SetUser("gone")

		for range 3 {
			_, ok := identity.CurrentUser(c)
			require.False(t, ok)
		}
		require.Equal(t, 1, store.lookups)
	})
}

func TestGuardCheck(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T, users ...repository.User) (*auth.Identity, *session.Manager) {
		t.Helper()
		sessions := session.NewManager(session.NewMemoryStore())
		return auth.New(newFakeStore(users...), sessions), sessions
	}

	loginAs := func(t *testing.T, c *dispatch.Context, user repository.User) {
		t.Helper()
		c.Session().SetUser(user.ID)
	}

	t.Run("unauthenticated is redirected to login with path remembered", func(t *testing.T) {
		t.Parallel()

		identity, sessions := setup(t)
		c := newTestContext(t, sessions, "/admin/users")

		verdict := identity.Check(c, dispatch.CapabilityAdministrator)
		require.False(t, verdict.Allowed)
		require.Equal(t, dispatch.DenyAuthRequired, verdict.Reason)
		require.NotNil(t, verdict.Denial)
		require.Equal(t, "/login", verdict.Denial.RedirectTo)
		require.Equal(t, "Please log in to access this page", c.Flash(dispatch.FlashError))
		require.Equal(t, "/admin/users", c.IntendedPath("/"))
	})

	t.Run("remembered path keeps the query string", func(t *testing.T) {
		t.Parallel()

		identity, sessions := setup(t)
		c := newTestContext(t, sessions, "/account/orders?page=2")

		verdict := identity.Check(c, dispatch.CapabilityAuthenticated)
		require.False(t, verdict.Allowed)
		require.Equal(t, "/account/orders?page=2", c.IntendedPath("/"))
	})

	t.Run("authenticated non-admin denied admin capability", func(t *testing.T) {
		t.Parallel()

		user := activeUser(t, repository.RoleCustomer)
		identity, sessions := setup(t, user)
		c := newTestContext(t, sessions, "/admin")
		loginAs(t, c, user)

		verdict := identity.Check(c, dispatch.CapabilityAdministrator)
		require.False(t, verdict.Allowed)
		require.Equal(t, dispatch.DenyAdminRequired, verdict.Reason)
		require.Equal(t, "/login", verdict.Denial.RedirectTo)
		require.Equal(t, "Administrative access required", c.Flash(dispatch.FlashError))
	})

	t.Run("administrator allowed", func(t *testing.T) {
		t.Parallel()

		admin := activeUser(t, repository.RoleAdmin)
		identity, sessions := setup(t, admin)
		c := newTestContext(t, sessions, "/admin")
		loginAs(t, c, admin)

		require.True(t, identity.Check(c, dispatch.CapabilityAdministrator).Allowed)
		require.True(t, identity.Check(c, dispatch.CapabilityAuthenticated).Allowed)
	})

	t.Run("non-vendor sent to vendor registration", func(t *testing.T) {
		t.Parallel()

		user := activeUser(t, repository.RoleCustomer)
		identity, sessions := setup(t, user)
		c := newTestContext(t, sessions, "/vendor/dashboard")
		loginAs(t, c, user)

		verdict := identity.Check(c, dispatch.CapabilityVendor)
		require.False(t, verdict.Allowed)
		require.Equal(t, dispatch.DenyVendorRequired, verdict.Reason)
		require.Equal(t, "/vendor/register", verdict.Denial.RedirectTo)
		require.Equal(t, "Vendor access required", c.Flash(dispatch.FlashError))
	})

	t.Run("admin is not implicitly a vendor", func(t *testing.T) {
		t.Parallel()

		admin := activeUser(t, repository.RoleAdmin)
		identity, sessions := setup(t, admin)
		c := newTestContext(t, sessions, "/vendor/dashboard")
		loginAs(t, c, admin)

		require.False(t, identity.Check(c, dispatch.CapabilityVendor).Allowed)
	})

	t.Run("locked account denied with locked reason", func(t *testing.T) {
		t.Parallel()

		user := activeUser(t, repository.RoleCustomer)
		user.Status = repository.UserStatusLocked
		identity, sessions := setup(t, user)
		c := newTestContext(t, sessions, "/account")
		loginAs(t, c, user)

		verdict := identity.Check(c, dispatch.CapabilityAuthenticated)
		require.False(t, verdict.Allowed)
		require.Equal(t, dispatch.DenyLocked, verdict.Reason)
		require.Equal(t, "/login", verdict.Denial.RedirectTo)
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()

	user := activeUser(t, repository.RoleCustomer)
	store := newFakeStore(user)
	sessions := session.NewManager(session.NewMemoryStore())
	identity := auth.New(store, sessions)

	c := newTestContext(t, sessions, "/logout")
	require.NoError(t, identity.Login(c, user))
	authenticated := c.Session().Token

	require.NoError(t, identity.Logout(c))
	require.False(t, c.Session().IsAuthenticated())
	require.NotEqual(t, authenticated, c.Session().Token)

	// The old session is gone from the store.
	gone, err := sessions.Load(context.Background(), authenticated)
	require.NoError(t, err)
	require.Nil(t, gone)

	// And the fresh identity no longer resolves.
	_, ok := identity.CurrentUser(c)
	require.False(t, ok)
}
