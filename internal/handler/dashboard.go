// Package handler provides the Telegram commands of the owner dashboard.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"lunar-card/internal/apperr"
	"lunar-card/internal/auth"
	"lunar-card/internal/game/fortune"
	"lunar-card/internal/mail"
	"lunar-card/internal/model"
)

// CallbackDelete is the unique id of the inline delete buttons.
const CallbackDelete = "del"

// AdminContextKey is set on telebot contexts by the admin middleware.
const AdminContextKey = "admin"

// Listing sizes of the chat dashboard.
const (
	DefaultChatN  = 10
	MaxChatN      = 30
	buttonsPerRow = 5
	maxMessageLen = 300
)

// Records is the administrative part of the notification gateway.
type Records interface {
	ListViews(ctx context.Context, n int) ([]*model.View, error)
	ListWishes(ctx context.Context, n int) ([]*model.Wish, error)
	ListFortunes(ctx context.Context, n int) ([]*model.Fortune, error)
	Delete(ctx context.Context, kind model.RecordKind, id string) error
}

// Entry is one listed record.
type Entry struct {
	ID   string
	Text string
}

// DashboardHandler handles the owner dashboard commands.
type DashboardHandler struct {
	records Records
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(records Records) *DashboardHandler {
	return &DashboardHandler{records: records}
}

// requestContext returns a context carrying the admin mark when the
// admin middleware let the update through.
func requestContext(c tele.Context) context.Context {
	ctx := context.Background()
	if ok, _ := c.Get(AdminContextKey).(bool); ok {
		ctx = auth.WithAdmin(ctx)
	}
	return ctx
}

// HandleStart handles the /start command.
func (h *DashboardHandler) HandleStart(c tele.Context) error {
	return c.Send("🧧 Bảng điều khiển thiệp Tết\n\n" +
		"/views [n] - lượt xem gần nhất\n" +
		"/wishes [n] - lời chúc gần nhất\n" +
		"/fortunes [n] - lì xì đã mở\n" +
		"/del <views|wishes|fortunes> <id> - xoá một bản ghi")
}

// HandleViews handles the /views command.
func (h *DashboardHandler) HandleViews(c tele.Context) error {
	views, err := h.records.ListViews(requestContext(c), ParseLimit(c.Args()))
	if err != nil {
		return h.replyError(c, "list_views", err)
	}
	entries := make([]Entry, 0, len(views))
	for _, v := range views {
		entries = append(entries, Entry{ID: v.ID, Text: FormatView(v)})
	}
	return h.sendList(c, model.KindViews, "👀 Lượt xem", entries)
}

// HandleWishes handles the /wishes command.
func (h *DashboardHandler) HandleWishes(c tele.Context) error {
	wishes, err := h.records.ListWishes(requestContext(c), ParseLimit(c.Args()))
	if err != nil {
		return h.replyError(c, "list_wishes", err)
	}
	entries := make([]Entry, 0, len(wishes))
	for _, w := range wishes {
		entries = append(entries, Entry{ID: w.ID, Text: FormatWish(w)})
	}
	return h.sendList(c, model.KindWishes, "💌 Lời chúc", entries)
}

// HandleFortunes handles the /fortunes command.
func (h *DashboardHandler) HandleFortunes(c tele.Context) error {
	fortunes, err := h.records.ListFortunes(requestContext(c), ParseLimit(c.Args()))
	if err != nil {
		return h.replyError(c, "list_fortunes", err)
	}
	entries := make([]Entry, 0, len(fortunes))
	for _, f := range fortunes {
		entries = append(entries, Entry{ID: f.ID, Text: FormatFortune(f)})
	}
	return h.sendList(c, model.KindFortunes, "🧧 Lì xì", entries)
}

// HandleDelete handles the /del command.
// Format: /del <views|wishes|fortunes> <id>
func (h *DashboardHandler) HandleDelete(c tele.Context) error {
	kind, id, err := ParseDeleteArgs(c.Args())
	if err != nil {
		return c.Reply(err.Error())
	}
	if err := h.records.Delete(requestContext(c), kind, id); err != nil {
		return h.replyError(c, "delete_record", err)
	}
	h.logDelete(c, kind, id)
	return c.Reply(fmt.Sprintf("✅ Đã xoá %s %s", kind, id))
}

// HandleDeleteCallback handles the inline delete buttons.
func (h *DashboardHandler) HandleDeleteCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	kind, id, err := DecodeDeleteData(callback.Data)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Thao tác không hợp lệ"})
	}

	if err := h.records.Delete(requestContext(c), kind, id); err != nil {
		text := "❌ Xoá thất bại"
		if errors.Is(err, apperr.ErrNotFound) {
			text = "❌ Bản ghi không còn tồn tại"
		}
		return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
	}

	h.logDelete(c, kind, id)
	return c.Respond(&tele.CallbackResponse{Text: "✅ Đã xoá"})
}

func (h *DashboardHandler) logDelete(c tele.Context, kind model.RecordKind, id string) {
	event := log.Info().Str("kind", string(kind)).Str("record_id", id).Str("operation", "delete_record")
	if sender := c.Sender(); sender != nil {
		event = event.Int64("admin_id", sender.ID)
	}
	event.Msg("Admin operation executed")
}

func (h *DashboardHandler) replyError(c tele.Context, op string, err error) error {
	log.Warn().Err(err).Str("op", op).Msg("Dashboard command failed")
	switch {
	case errors.Is(err, apperr.ErrPermission):
		return c.Reply("❌ Không đủ quyền")
	case errors.Is(err, apperr.ErrNotFound):
		return c.Reply("❌ Không tìm thấy bản ghi")
	case errors.Is(err, apperr.ErrValidation):
		return c.Reply("❌ " + err.Error())
	default:
		return c.Reply("❌ Có lỗi xảy ra, thử lại sau")
	}
}

func (h *DashboardHandler) sendList(c tele.Context, kind model.RecordKind, title string, entries []Entry) error {
	if len(entries) == 0 {
		return c.Send(title + ": chưa có gì")
	}
	return c.Send(FormatList(title, entries), DeleteMarkup(kind, entries))
}

// ParseLimit reads the optional count argument of a listing command.
func ParseLimit(args []string) int {
	if len(args) == 0 {
		return DefaultChatN
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return DefaultChatN
	}
	return min(n, MaxChatN)
}

// ParseDeleteArgs parses the arguments of /del.
func ParseDeleteArgs(args []string) (model.RecordKind, string, error) {
	if len(args) != 2 {
		return "", "", errors.New("❌ Cú pháp: /del <views|wishes|fortunes> <id>")
	}
	kind := model.RecordKind(strings.ToLower(strings.TrimSpace(args[0])))
	switch kind {
	case model.KindViews, model.KindWishes, model.KindFortunes:
	default:
		return "", "", fmt.Errorf("❌ Loại bản ghi không hợp lệ: %s", args[0])
	}
	id := strings.TrimSpace(args[1])
	if id == "" {
		return "", "", errors.New("❌ Thiếu id")
	}
	return kind, id, nil
}

// EncodeDeleteData builds the callback payload of a delete button.
func EncodeDeleteData(kind model.RecordKind, id string) string {
	return string(kind) + "|" + id
}

// DecodeDeleteData parses the callback payload of a delete button.
func DecodeDeleteData(data string) (model.RecordKind, string, error) {
	data = strings.TrimPrefix(data, "\f")
	data = strings.TrimPrefix(data, CallbackDelete+"|")
	kind, id, ok := strings.Cut(data, "|")
	if !ok {
		return "", "", errors.New("malformed callback data")
	}
	return ParseDeleteArgs([]string{kind, id})
}

// DeleteMarkup builds one numbered delete button per entry.
func DeleteMarkup(kind model.RecordKind, entries []Entry) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	var rows []tele.Row
	var current []tele.Btn
	for i, e := range entries {
		btn := markup.Data(fmt.Sprintf("🗑 %d", i+1), CallbackDelete, string(kind), e.ID)
		current = append(current, btn)
		if len(current) == buttonsPerRow {
			rows = append(rows, markup.Row(current...))
			current = nil
		}
	}
	if len(current) > 0 {
		rows = append(rows, markup.Row(current...))
	}
	markup.Inline(rows...)
	return markup
}

// FormatList renders numbered entries under title.
func FormatList(title string, entries []Entry) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "\n%d. %s\n🆔 %s\n", i+1, e.Text, e.ID)
	}
	return b.String()
}

// FormatView renders a view record.
func FormatView(v *model.View) string {
	s := fmt.Sprintf("%s → %s lúc %s", who(v.ViewerLabel, v.ViewerKey), who(v.TargetLabel, v.TargetKey), mail.FormatTime(v.StartedAt))
	if v.EndedAt != nil {
		s += fmt.Sprintf(" (%ds)", v.DurationSec)
	}
	return s
}

// FormatWish renders a wish record.
func FormatWish(w *model.Wish) string {
	s := fmt.Sprintf("%s gửi %s: %s", who(w.ViewerLabel, w.ViewerKey), who(w.TargetLabel, w.TargetKey), truncate(w.Message, maxMessageLen))
	if w.FortuneAmount > 0 {
		s += fmt.Sprintf("\n🧧 %s", fortune.FormatVND(w.FortuneAmount))
	}
	if w.BankName != "" || w.BankAccount != "" {
		s += fmt.Sprintf("\n🏦 %s %s", w.BankName, w.BankAccount)
	}
	return s
}

// FormatFortune renders a fortune record.
func FormatFortune(f *model.Fortune) string {
	s := fmt.Sprintf("%s nhận %s lúc %s", who(f.ViewerLabel, f.ViewerKey), fortune.FormatVND(f.Amount), mail.FormatTime(f.CreatedAt))
	if f.BankName != "" || f.BankAccount != "" {
		s += fmt.Sprintf("\n🏦 %s %s", f.BankName, f.BankAccount)
	}
	return s
}

// FormatWishAlert renders the owner notification for a new wish.
func FormatWishAlert(w *model.Wish) string {
	return "💌 Lời chúc mới\n\n" + FormatWish(w)
}

func who(label, key string) string {
	if label != "" {
		return label
	}
	if key != "" {
		return key
	}
	return mail.AnonymousSender
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
