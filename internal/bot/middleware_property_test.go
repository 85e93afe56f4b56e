package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
	"pgregory.net/rapid"

	"lunar-card/internal/config"
	"lunar-card/internal/handler"
)

// fakeContext implements the parts of tele.Context the middleware touches.
type fakeContext struct {
	tele.Context
	sender  *tele.User
	store   map[string]interface{}
	replies []string
}

func newFakeContext(userID int64) *fakeContext {
	return &fakeContext{sender: &tele.User{ID: userID}, store: map[string]interface{}{}}
}

func (f *fakeContext) Sender() *tele.User { return f.sender }
func (f *fakeContext) Text() string       { return "/views" }

func (f *fakeContext) Set(key string, val interface{}) { f.store[key] = val }
func (f *fakeContext) Get(key string) interface{}      { return f.store[key] }

func (f *fakeContext) Reply(what interface{}, _ ...interface{}) error {
	f.replies = append(f.replies, what.(string))
	return nil
}

// TestAdminPermissionCheckProperty checks that a user is an admin if and
// only if their id is configured.
func TestAdminPermissionCheckProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numAdmins := rapid.IntRange(1, 10).Draw(t, "numAdmins")
		adminIDs := make([]int64, numAdmins)
		for i := 0; i < numAdmins; i++ {
			adminIDs[i] = rapid.Int64Range(1, 1000000000).Draw(t, "adminID")
		}

		cfg := &config.Config{
			Admin: config.AdminConfig{
				IDs: adminIDs,
			},
		}

		userID := rapid.Int64Range(1, 1000000000).Draw(t, "userID")

		expectedIsAdmin := false
		for _, id := range adminIDs {
			if id == userID {
				expectedIsAdmin = true
				break
			}
		}

		if cfg.IsAdmin(userID) != expectedIsAdmin {
			t.Fatalf("Admin check mismatch: userID=%d, adminIDs=%v, expected=%v",
				userID, adminIDs, expectedIsAdmin)
		}
	})
}

// TestAdminMiddlewareProperty checks that the middleware runs the handler
// exactly for admins and marks their updates.
func TestAdminMiddlewareProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		adminIDs := rapid.SliceOfNDistinct(rapid.Int64Range(1, 1000), 1, 5, rapid.ID[int64]).Draw(t, "adminIDs")
		cfg := &config.Config{Admin: config.AdminConfig{IDs: adminIDs}}

		var userID int64
		if rapid.Bool().Draw(t, "pickAdmin") {
			userID = rapid.SampledFrom(adminIDs).Draw(t, "admin")
		} else {
			userID = rapid.Int64Range(1001, 2000).Draw(t, "stranger")
		}

		called := false
		next := func(c tele.Context) error {
			called = true
			return nil
		}

		c := newFakeContext(userID)
		if err := AdminMiddleware(cfg)(next)(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		isAdmin := cfg.IsAdmin(userID)
		if called != isAdmin {
			t.Fatalf("handler called=%v for userID=%d, admin=%v", called, userID, isAdmin)
		}
		marked, _ := c.Get(handler.AdminContextKey).(bool)
		if marked != isAdmin {
			t.Fatalf("admin mark=%v for userID=%d, admin=%v", marked, userID, isAdmin)
		}
		if !isAdmin && len(c.replies) != 1 {
			t.Fatalf("expected one refusal, got %v", c.replies)
		}
	})
}

func TestAdminMiddleware_NoSender(t *testing.T) {
	cfg := &config.Config{Admin: config.AdminConfig{IDs: []int64{1}}}
	c := newFakeContext(0)
	c.sender = nil

	called := false
	err := AdminMiddleware(cfg)(func(tele.Context) error {
		called = true
		return nil
	})(c)

	require.NoError(t, err)
	assert.False(t, called)
	assert.Empty(t, c.replies)
}

func TestRecoveryMiddleware(t *testing.T) {
	c := newFakeContext(1)

	err := RecoveryMiddleware()(func(tele.Context) error {
		panic("boom")
	})(c)

	require.NoError(t, err)
	require.Len(t, c.replies, 1)
	assert.Contains(t, c.replies[0], "lỗi nội bộ")
}

func TestNotifyWish_NoAdmins(t *testing.T) {
	b := &Bot{cfg: &config.Config{}}

	err := b.NotifyWish(context.Background(), nil)

	assert.ErrorIs(t, err, ErrNoRecipients)
}
