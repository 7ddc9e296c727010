package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/relaychat/internal/ai"
)

func TestTitleService_Generate(t *testing.T) {
	cases := []struct {
		name     string
		provider *scriptedProvider
		content  string
		want     string
	}{
		{"generated", &scriptedProvider{family: ai.FamilyGoogle, reply: " \"Paris Trip Ideas\"\n"}, "plan a trip to paris", "Paris Trip Ideas"},
		{"provider error", &scriptedProvider{family: ai.FamilyGoogle, chatErr: errors.New("503")}, "how do I bake sourdough bread at home", "how do I bake"},
		{"empty reply", &scriptedProvider{family: ai.FamilyGoogle, reply: `""`}, "short one", "short one"},
		{"no google provider", nil, "  spaced   out words here and more ", "spaced out words here"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := openTestDB(t)
			repo := NewRepo(db)
			reg := ai.NewRegistry()
			if tc.provider != nil {
				reg.RegisterProvider(tc.provider)
			}
			svc := NewService(repo, nil)
			ctx := context.Background()

			c, err := svc.CreateChat(ctx, 1, "", "")
			require.NoError(t, err)
			_, _, err = svc.CreateTurn(ctx, 1, c.ID, tc.content)
			require.NoError(t, err)

			got, err := NewTitleService(repo, reg, "").Generate(ctx, 1, c.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Title)

			stored, err := repo.GetChatForUser(ctx, c.ID, 1)
			require.NoError(t, err)
			assert.Equal(t, tc.want, stored.Title)

			if tc.provider != nil {
				assert.Equal(t, DefaultTitleModel, tc.provider.last.Model)
				require.Len(t, tc.provider.last.History, 1)
				assert.Contains(t, tc.provider.last.History[0].Content, "4 words max")
			}
		})
	}
}

func TestTitleService_Errors(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()
	ts := NewTitleService(repo, ai.NewRegistry(), "")

	c, err := NewService(repo, nil).CreateChat(ctx, 1, "", "")
	require.NoError(t, err)

	_, err = ts.Generate(ctx, 1, c.ID)
	assert.ErrorIs(t, err, ErrNoUserMessage)
	_, err = ts.Generate(ctx, 2, c.ID)
	assert.ErrorIs(t, err, ErrChatNotFound)
	_, err = ts.Generate(ctx, 0, c.ID)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestFallbackTitle(t *testing.T) {
	assert.Equal(t, UntitledChat, fallbackTitle("   "))
	assert.Equal(t, "one two", fallbackTitle("one two"))
	assert.Equal(t, "a b c d", fallbackTitle("a b c d e f"))
}
