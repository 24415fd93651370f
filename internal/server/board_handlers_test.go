package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"campushub/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolls_CreateVoteAndMoveVote(t *testing.T) {
	env := newTestEnv(t)
	creator := env.user(t, "pollster")
	voter := env.user(t, "voter")
	other := env.user(t, "othervoter")

	t.Run("validation", func(t *testing.T) {
		cases := []fiber.Map{
			{"question": "Only one?", "options": []string{"yes"}},
			{"question": "", "options": []string{"a", "b"}},
			{"question": "Blank option?", "options": []string{"a", "   "}},
			{"question": "Already over?", "options": []string{"a", "b"}, "expires_at": time.Now().Add(-time.Hour)},
		}
		for _, body := range cases {
			resp := env.do(t, http.MethodPost, "/api/polls", body, creator.token)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		}
	})

	var poll models.Poll
	env.expect(t, env.do(t, http.MethodPost, "/api/polls",
		fiber.Map{"question": "Best study spot?", "options": []string{"Library", "Cafe", "Dorm"}}, creator.token),
		http.StatusCreated, &poll)
	require.Len(t, poll.Options, 3)
	library, cafe := poll.Options[0], poll.Options[1]
	votePath := fmt.Sprintf("/api/polls/%d/vote", poll.ID)

	var after models.Poll
	env.expect(t, env.do(t, http.MethodPost, votePath, fiber.Map{"option_id": library.ID}, voter.token),
		http.StatusOK, &after)
	require.NotNil(t, after.MyOptionID)
	assert.Equal(t, library.ID, *after.MyOptionID)
	assert.Equal(t, int64(1), after.TotalVotes)

	env.expect(t, env.do(t, http.MethodPost, votePath, fiber.Map{"option_id": library.ID}, other.token),
		http.StatusOK, nil)

	// Voting again moves the vote instead of adding one.
	env.expect(t, env.do(t, http.MethodPost, votePath, fiber.Map{"option_id": cafe.ID}, voter.token),
		http.StatusOK, &after)
	assert.Equal(t, cafe.ID, *after.MyOptionID)
	assert.Equal(t, int64(2), after.TotalVotes)
	counts := map[uint]int64{}
	for _, o := range after.Options {
		counts[o.ID] = o.VoteCount
	}
	assert.Equal(t, int64(1), counts[library.ID])
	assert.Equal(t, int64(1), counts[cafe.ID])

	resp := env.do(t, http.MethodPost, votePath, fiber.Map{"option_id": 99999}, voter.token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, votePath, fiber.Map{"option_id": cafe.ID}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var anon models.Poll
	env.expect(t, env.do(t, http.MethodGet, fmt.Sprintf("/api/polls/%d", poll.ID), nil, ""), http.StatusOK, &anon)
	assert.Nil(t, anon.MyOptionID)
	assert.Equal(t, int64(2), anon.TotalVotes)

	var list []models.Poll
	env.expect(t, env.do(t, http.MethodGet, "/api/polls", nil, voter.token), http.StatusOK, &list)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].MyOptionID)
	assert.Equal(t, cafe.ID, *list[0].MyOptionID)
}

func TestPolls_ClosedPollRejectsVotes(t *testing.T) {
	env := newTestEnv(t)
	creator := env.user(t, "closer")
	voter := env.user(t, "latecomer")

	var poll models.Poll
	env.expect(t, env.do(t, http.MethodPost, "/api/polls", fiber.Map{
		"question":   "Quick one",
		"options":    []string{"a", "b"},
		"expires_at": time.Now().Add(time.Hour),
	}, creator.token), http.StatusCreated, &poll)

	require.NoError(t, env.db.Model(&models.Poll{}).Where("id = ?", poll.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/polls/%d/vote", poll.ID),
		fiber.Map{"option_id": poll.Options[0].ID}, voter.token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPolls_Delete(t *testing.T) {
	env := newTestEnv(t)
	creator := env.user(t, "asker")
	other := env.user(t, "meddler")

	var poll models.Poll
	env.expect(t, env.do(t, http.MethodPost, "/api/polls",
		fiber.Map{"question": "Delete me?", "options": []string{"yes", "no"}}, creator.token),
		http.StatusCreated, &poll)
	path := fmt.Sprintf("/api/polls/%d", poll.ID)

	resp := env.do(t, http.MethodDelete, path, nil, other.token)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	env.expect(t, env.do(t, http.MethodDelete, path, nil, creator.token), http.StatusNoContent, nil)

	resp = env.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConfessions_StayAnonymous(t *testing.T) {
	env := newTestEnv(t)
	author := env.user(t, "secretkeeper")
	reader := env.user(t, "reader")

	resp := env.do(t, http.MethodPost, "/api/confessions", fiber.Map{"content": "I never read the syllabus"}, author.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "author_id")
	assert.NotContains(t, fields, "user_id")

	var created models.ConfessionDTO
	require.NoError(t, json.Unmarshal(raw, &created))

	var aura map[string]any
	env.expect(t, env.do(t, http.MethodPost, fmt.Sprintf("/api/confessions/%d/aura", created.ID), nil, reader.token),
		http.StatusOK, &aura)
	assert.Equal(t, true, aura["liked"])
	assert.NotContains(t, aura, "author_id")

	commentsPath := fmt.Sprintf("/api/confessions/%d/comments", created.ID)
	var comment models.ConfessionCommentDTO
	env.expect(t, env.do(t, http.MethodPost, commentsPath, fiber.Map{"content": "same"}, reader.token),
		http.StatusCreated, &comment)

	var reply models.ConfessionCommentDTO
	env.expect(t, env.do(t, http.MethodPost, commentsPath,
		fiber.Map{"content": "honestly same", "parent_id": comment.ID}, author.token), http.StatusCreated, &reply)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, comment.ID, *reply.ParentID)

	var comments []map[string]any
	env.expect(t, env.do(t, http.MethodGet, commentsPath, nil, ""), http.StatusOK, &comments)
	require.Len(t, comments, 2)
	for _, c := range comments {
		assert.NotContains(t, c, "author_id")
	}

	var board []models.ConfessionDTO
	env.expect(t, env.do(t, http.MethodGet, "/api/confessions", nil, reader.token), http.StatusOK, &board)
	require.Len(t, board, 1)
	assert.True(t, board[0].Liked)
	assert.Equal(t, 1, board[0].AuraCount)
	assert.Equal(t, 2, board[0].CommentCount)

	resp = env.do(t, http.MethodPost, "/api/confessions/9999/comments", fiber.Map{"content": "hello?"}, reader.token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConfessions_RateLimitAndModeration(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "oversharer")

	var first models.ConfessionDTO
	for i := 0; i < 3; i++ {
		var c models.ConfessionDTO
		env.expect(t, env.do(t, http.MethodPost, "/api/confessions",
			fiber.Map{"content": fmt.Sprintf("confession %d", i)}, u.token), http.StatusCreated, &c)
		if i == 0 {
			first = c
		}
	}
	resp := env.do(t, http.MethodPost, "/api/confessions", fiber.Map{"content": "one more"}, u.token)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Authors are anonymous, so only admins remove confessions.
	path := fmt.Sprintf("/api/confessions/%d", first.ID)
	resp = env.do(t, http.MethodDelete, path, nil, u.token)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin := env.signUp(t, testAdminEmail)
	env.expect(t, env.do(t, http.MethodDelete, path, nil, admin.token), http.StatusNoContent, nil)

	var board []models.ConfessionDTO
	env.expect(t, env.do(t, http.MethodGet, "/api/confessions", nil, ""), http.StatusOK, &board)
	assert.Len(t, board, 2)
}

func TestMarketplace_Listings(t *testing.T) {
	env := newTestEnv(t)
	seller := env.user(t, "seller")
	buyer := env.user(t, "buyer")

	resp := env.do(t, http.MethodPost, "/api/marketplace",
		fiber.Map{"title": "Free money", "price_cents": -5}, seller.token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/marketplace",
		fiber.Map{"title": "Lamp", "category": "home goods!"}, seller.token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var textbook models.MarketplaceListing
	env.expect(t, env.do(t, http.MethodPost, "/api/marketplace", fiber.Map{
		"title":       "Calculus textbook",
		"description": "Lightly highlighted",
		"price_cents": 4500,
		"category":    "Books",
		"image_urls":  []string{"https://cdn.test/calc.jpg"},
	}, seller.token), http.StatusCreated, &textbook)
	assert.Equal(t, "books", textbook.Category)
	assert.Equal(t, models.ListingAvailable, textbook.Status)
	assert.Equal(t, int64(4500), textbook.PriceCents)

	env.expect(t, env.do(t, http.MethodPost, "/api/marketplace",
		fiber.Map{"title": "Mini fridge", "price_cents": 6000, "category": "dorm"}, seller.token),
		http.StatusCreated, nil)

	var books []models.MarketplaceListing
	env.expect(t, env.do(t, http.MethodGet, "/api/marketplace?category=books", nil, ""), http.StatusOK, &books)
	require.Len(t, books, 1)
	assert.Equal(t, textbook.ID, books[0].ID)

	var found []models.MarketplaceListing
	env.expect(t, env.do(t, http.MethodGet, "/api/marketplace?q=fridge", nil, buyer.token), http.StatusOK, &found)
	require.Len(t, found, 1)

	resp = env.do(t, http.MethodGet, "/api/marketplace?status=gone", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	soldPath := fmt.Sprintf("/api/marketplace/%d/sold", textbook.ID)
	resp = env.do(t, http.MethodPost, soldPath, nil, buyer.token)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var sold models.MarketplaceListing
	env.expect(t, env.do(t, http.MethodPost, soldPath, nil, seller.token), http.StatusOK, &sold)
	assert.Equal(t, models.ListingSold, sold.Status)

	var available []models.MarketplaceListing
	env.expect(t, env.do(t, http.MethodGet,
		fmt.Sprintf("/api/marketplace?status=available&seller_id=%d", seller.id), nil, ""), http.StatusOK, &available)
	require.Len(t, available, 1)
	assert.Equal(t, "Mini fridge", available[0].Title)

	path := fmt.Sprintf("/api/marketplace/%d", textbook.ID)
	resp = env.do(t, http.MethodDelete, path, nil, buyer.token)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	env.expect(t, env.do(t, http.MethodDelete, path, nil, seller.token), http.StatusNoContent, nil)

	resp = env.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
