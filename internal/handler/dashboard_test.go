package handler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"lunar-card/internal/model"
	"lunar-card/internal/notify"
)

// fakeContext implements the parts of tele.Context the dashboard touches.
type fakeContext struct {
	tele.Context
	args      []string
	callback  *tele.Callback
	store     map[string]interface{}
	sent      []string
	markups   []*tele.ReplyMarkup
	responses []*tele.CallbackResponse
}

func newFakeContext(admin bool, args ...string) *fakeContext {
	c := &fakeContext{args: args, store: map[string]interface{}{}}
	if admin {
		c.store[AdminContextKey] = true
	}
	return c
}

func (f *fakeContext) Args() []string            { return f.args }
func (f *fakeContext) Callback() *tele.Callback  { return f.callback }
func (f *fakeContext) Sender() *tele.User        { return &tele.User{ID: 42} }
func (f *fakeContext) Get(key string) interface{} { return f.store[key] }

func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	f.sent = append(f.sent, what.(string))
	for _, o := range opts {
		if m, ok := o.(*tele.ReplyMarkup); ok {
			f.markups = append(f.markups, m)
		}
	}
	return nil
}

func (f *fakeContext) Reply(what interface{}, opts ...interface{}) error {
	return f.Send(what, opts...)
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	f.responses = append(f.responses, resp...)
	return nil
}

func newFixture(t *testing.T) (*DashboardHandler, *notify.MemoryStore) {
	t.Helper()
	store := notify.NewMemoryStore()
	gw := notify.NewGateway(store, notify.NewTasks(time.Second), notify.Options{OwnerKey: "default"})

	ctx := context.Background()
	at := time.Date(2026, 2, 17, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.CreateWish(ctx, &model.Wish{
		ID: "w1", OwnerKey: "default", ViewerLabel: "Mai", TargetLabel: "Boss",
		Message: "Năm mới vui vẻ", FortuneAmount: 50000, BankName: "VCB", BankAccount: "0123", CreatedAt: at,
	}))
	require.NoError(t, store.CreateView(ctx, &model.View{
		ID: "v1", OwnerKey: "default", ViewerKey: "mai", TargetKey: "boss", StartedAt: at,
	}))
	require.NoError(t, store.CreateFortune(ctx, &model.Fortune{
		ID: "f1", OwnerKey: "default", ViewerLabel: "Mai", Amount: 20000, CreatedAt: at,
	}))
	return NewDashboardHandler(gw), store
}

func TestHandleWishes(t *testing.T) {
	h, _ := newFixture(t)
	c := newFakeContext(true)

	require.NoError(t, h.HandleWishes(c))

	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "Mai gửi Boss: Năm mới vui vẻ")
	assert.Contains(t, c.sent[0], "50.000đ")
	assert.Contains(t, c.sent[0], "VCB 0123")
	assert.Contains(t, c.sent[0], "🆔 w1")
	require.Len(t, c.markups, 1)
	require.Len(t, c.markups[0].InlineKeyboard, 1)
	assert.Equal(t, CallbackDelete, c.markups[0].InlineKeyboard[0][0].Unique)
}

func TestHandleViewsAndFortunes(t *testing.T) {
	h, _ := newFixture(t)

	views := newFakeContext(true)
	require.NoError(t, h.HandleViews(views))
	require.Len(t, views.sent, 1)
	assert.Contains(t, views.sent[0], "mai → boss lúc 09:30:00 17/2/2026")

	fortunes := newFakeContext(true)
	require.NoError(t, h.HandleFortunes(fortunes))
	require.Len(t, fortunes.sent, 1)
	assert.Contains(t, fortunes.sent[0], "Mai nhận 20.000đ")
}

func TestHandleWishes_RequiresAdminMark(t *testing.T) {
	h, _ := newFixture(t)
	c := newFakeContext(false)

	require.NoError(t, h.HandleWishes(c))

	require.Len(t, c.sent, 1)
	assert.Equal(t, "❌ Không đủ quyền", c.sent[0])
	assert.Empty(t, c.markups)
}

func TestHandleDelete(t *testing.T) {
	h, store := newFixture(t)

	c := newFakeContext(true, "wishes", "w1")
	require.NoError(t, h.HandleDelete(c))
	assert.Equal(t, []string{"✅ Đã xoá wishes w1"}, c.sent)

	wishes, err := store.ListWishes(context.Background(), "default", 10)
	require.NoError(t, err)
	assert.Empty(t, wishes)

	again := newFakeContext(true, "wishes", "w1")
	require.NoError(t, h.HandleDelete(again))
	assert.Equal(t, []string{"❌ Không tìm thấy bản ghi"}, again.sent)

	bad := newFakeContext(true, "users", "1")
	require.NoError(t, h.HandleDelete(bad))
	require.Len(t, bad.sent, 1)
	assert.Contains(t, bad.sent[0], "không hợp lệ")
}

func TestHandleDeleteCallback(t *testing.T) {
	h, store := newFixture(t)

	c := newFakeContext(true)
	c.callback = &tele.Callback{Data: EncodeDeleteData(model.KindViews, "v1")}
	require.NoError(t, h.HandleDeleteCallback(c))
	require.Len(t, c.responses, 1)
	assert.Equal(t, "✅ Đã xoá", c.responses[0].Text)

	views, err := store.ListViews(context.Background(), "default", 10)
	require.NoError(t, err)
	assert.Empty(t, views)

	gone := newFakeContext(true)
	gone.callback = &tele.Callback{Data: "\fdel|views|v1"}
	require.NoError(t, h.HandleDeleteCallback(gone))
	require.Len(t, gone.responses, 1)
	assert.True(t, gone.responses[0].ShowAlert)
}

func TestHandleList_Empty(t *testing.T) {
	gw := notify.NewGateway(notify.NewMemoryStore(), notify.NewTasks(time.Second), notify.Options{OwnerKey: "default"})
	h := NewDashboardHandler(gw)
	c := newFakeContext(true)

	require.NoError(t, h.HandleFortunes(c))

	assert.Equal(t, []string{"🧧 Lì xì: chưa có gì"}, c.sent)
	assert.Empty(t, c.markups)
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		args []string
		want int
	}{
		{nil, DefaultChatN},
		{[]string{"5"}, 5},
		{[]string{"0"}, DefaultChatN},
		{[]string{"-3"}, DefaultChatN},
		{[]string{"abc"}, DefaultChatN},
		{[]string{"1000"}, MaxChatN},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLimit(tt.args), "args=%v", tt.args)
	}
}

func TestDecodeDeleteData(t *testing.T) {
	tests := []struct {
		data    string
		kind    model.RecordKind
		id      string
		wantErr bool
	}{
		{"wishes|abc", model.KindWishes, "abc", false},
		{"\fdel|fortunes|xyz", model.KindFortunes, "xyz", false},
		{"del|views|1", model.KindViews, "1", false},
		{"views", "", "", true},
		{"users|1", "", "", true},
		{"views| ", "", "", true},
	}
	for _, tt := range tests {
		kind, id, err := DecodeDeleteData(tt.data)
		if tt.wantErr {
			assert.Error(t, err, "data=%q", tt.data)
			continue
		}
		require.NoError(t, err, "data=%q", tt.data)
		assert.Equal(t, tt.kind, kind)
		assert.Equal(t, tt.id, id)
	}
}

func TestDeleteMarkup_Rows(t *testing.T) {
	entries := make([]Entry, 7)
	for i := range entries {
		entries[i] = Entry{ID: string(rune('a' + i))}
	}

	markup := DeleteMarkup(model.KindWishes, entries)

	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[0], buttonsPerRow)
	assert.Len(t, markup.InlineKeyboard[1], 2)
	assert.Equal(t, "🗑 6", markup.InlineKeyboard[1][0].Text)
}

func TestFormatWish_Anonymous(t *testing.T) {
	long := make([]rune, maxMessageLen+10)
	for i := range long {
		long[i] = 'ơ'
	}

	got := FormatWish(&model.Wish{Message: string(long)})

	assert.Contains(t, got, "Ẩn danh gửi Ẩn danh: ")
	assert.Contains(t, got, "…")
	assert.NotContains(t, got, "🧧")
	assert.NotContains(t, got, "🏦")
}
