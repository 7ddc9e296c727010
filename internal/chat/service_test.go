package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/relaychat/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &Chat{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string, quota int) *models.User {
	t.Helper()
	u := &models.User{Email: email, Username: email, PasswordHash: "x", MessageCount: quota}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

type staticQuota int

func (q staticQuota) Remaining(context.Context, uint64) (int, error) { return int(q), nil }

func TestCreateTurn_WritesUserThenPlaceholder(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	svc := NewService(repo, staticQuota(5))
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, 1, "", "")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	if c.Title != DefaultTitle || c.ModelID != nil {
		t.Fatalf("unexpected chat defaults: %+v", c)
	}

	// push updated_at into the past so the touch is observable
	past := time.Now().Add(-time.Hour)
	if err := db.Model(&Chat{}).Where("id = ?", c.ID).UpdateColumn("updated_at", past).Error; err != nil {
		t.Fatalf("backdate chat: %v", err)
	}

	userMsg, aiMsg, err := svc.CreateTurn(ctx, 1, c.ID, "  Hello  ")
	if err != nil {
		t.Fatalf("create turn: %v", err)
	}
	if userMsg.Role != RoleUser || userMsg.Content != "Hello" {
		t.Fatalf("unexpected user message: %+v", userMsg)
	}
	if aiMsg.Role != RoleModel || aiMsg.Content != "" {
		t.Fatalf("unexpected placeholder: %+v", aiMsg)
	}

	msgs, err := svc.ListMessages(ctx, 1, c.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != userMsg.ID || msgs[1].ID != aiMsg.ID {
		t.Fatalf("expected user then placeholder, got %+v", msgs)
	}

	got, err := repo.GetChatForUser(ctx, c.ID, 1)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if !got.UpdatedAt.After(past) {
		t.Fatalf("chat was not touched: %v", got.UpdatedAt)
	}
}

func TestCreateTurn_RollsBackUserMessageWhenPlaceholderFails(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	svc := NewService(repo, nil)
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, 1, "t", "")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}

	boom := errors.New("disk full")
	if err := db.Callback().Create().Before("gorm:create").Register("test:fail_placeholder", func(tx *gorm.DB) {
		if m, ok := tx.Statement.Dest.(*Message); ok && m.Role == RoleModel {
			_ = tx.AddError(boom)
		}
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	_, _, err = svc.CreateTurn(ctx, 1, c.ID, "hi")
	if !errors.Is(err, boom) {
		t.Fatalf("expected placeholder error, got %v", err)
	}

	var n int64
	if err := db.Model(&Message{}).Where("chat_id = ?", c.ID).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no messages after rollback, got %d", n)
	}
}

func TestCreateTurn_Rejections(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	c, err := NewService(repo, nil).CreateChat(ctx, 1, "", "gpt-4o")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}

	cases := []struct {
		name    string
		svc     *Service
		userID  uint64
		content string
		want    error
	}{
		{"no identity", NewService(repo, nil), 0, "hi", ErrUnauthenticated},
		{"not owner", NewService(repo, nil), 2, "hi", ErrChatNotFound},
		{"blank content", NewService(repo, nil), 1, "   ", ErrEmptyContent},
		{"quota exhausted", NewService(repo, staticQuota(0)), 1, "hi", ErrQuotaExhausted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := tc.svc.CreateTurn(ctx, tc.userID, c.ID, tc.content)
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}

	var n int64
	db.Model(&Message{}).Count(&n)
	if n != 0 {
		t.Fatalf("rejected turns must not write, found %d messages", n)
	}
}

func TestListMessages_CreationOrderWithTiedTimestamps(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	c := &Chat{UserID: 1}
	if err := repo.CreateChat(ctx, c); err != nil {
		t.Fatalf("create chat: %v", err)
	}
	at := time.Now().Truncate(time.Second)
	var want []string
	for i := 0; i < 6; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleModel
		}
		m := &Message{ChatID: c.ID, Role: role, Content: fmt.Sprintf("m%d", i), CreatedAt: at}
		if err := repo.InsertMessage(ctx, m); err != nil {
			t.Fatalf("insert: %v", err)
		}
		want = append(want, m.Content)
	}

	msgs, err := repo.ListMessages(ctx, c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got []string
	for _, m := range msgs {
		got = append(got, m.Content)
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("order mismatch: got %v want %v", got, want)
	}
}

func TestListChats_MostRecentFirstAndDelete(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	svc := NewService(repo, nil)
	ctx := context.Background()

	a, _ := svc.CreateChat(ctx, 1, "a", "")
	b, _ := svc.CreateChat(ctx, 1, "b", "")
	if _, err := svc.CreateChat(ctx, 2, "other", ""); err != nil {
		t.Fatalf("create chat: %v", err)
	}
	db.Model(&Chat{}).Where("id = ?", b.ID).UpdateColumn("updated_at", time.Now().Add(-time.Hour))
	if err := repo.TouchChat(ctx, a.ID); err != nil {
		t.Fatalf("touch: %v", err)
	}

	chats, err := svc.ListChats(ctx, 1)
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(chats) != 2 || chats[0].ID != a.ID || chats[1].ID != b.ID {
		t.Fatalf("unexpected order: %+v", chats)
	}

	if _, _, err := svc.CreateTurn(ctx, 1, a.ID, "hi"); err != nil {
		t.Fatalf("create turn: %v", err)
	}
	if err := svc.DeleteChat(ctx, 2, a.ID); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("delete by non-owner: %v", err)
	}
	if err := svc.DeleteChat(ctx, 1, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var n int64
	db.Model(&Message{}).Where("chat_id = ?", a.ID).Count(&n)
	if n != 0 {
		t.Fatalf("messages survived chat delete: %d", n)
	}
}
