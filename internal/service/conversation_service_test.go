package service

import (
	"context"
	"testing"

	"campushub/internal/models"
	"campushub/internal/realtime"
	"campushub/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConversationService(h *harness) *ConversationService {
	return NewConversationService(
		repository.NewConversationRepository(h.db),
		repository.NewProfileRepository(h.db),
		repository.NewPostRepository(h.db),
		h.feed,
		h.guard,
	)
}

func TestConversationService_SendAndMarkRead(t *testing.T) {
	h := newHarness(t)
	svc := newConversationService(h)
	ctx := context.Background()
	asha := h.profile(t, "asha")
	ravi := h.profile(t, "ravi")

	_, err := svc.Start(ctx, asha.ID, asha.ID)
	assertAppCode(t, err, models.CodeValidation)

	conv, err := svc.Start(ctx, asha.ID, ravi.ID)
	require.NoError(t, err)
	again, err := svc.Start(ctx, ravi.ID, asha.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	messages := h.record(t, realtime.FilterID(realtime.TableDirectMessages, "conversation_id", conv.ID))
	reads := h.record(t, realtime.FilterID(realtime.TableConversationReads, "conversation_id", conv.ID))

	msg, err := svc.Send(ctx, SendMessageInput{SenderID: asha.ID, ConversationID: conv.ID, Content: "hey"})
	require.NoError(t, err)
	require.Len(t, messages.all(), 1)
	var emitted models.DirectMessage
	require.NoError(t, messages.all()[0].Decode(&emitted))
	assert.Equal(t, msg.ID, emitted.ID)

	_, unread, err := svc.LoadLive(ctx, conv.ID, ravi.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	n, err := svc.MarkRead(ctx, ravi.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.Len(t, reads.all(), 1)
	var receipt realtime.ReadReceipt
	require.NoError(t, reads.all()[0].Decode(&receipt))
	assert.Equal(t, ravi.ID, receipt.ReaderID)

	// Nothing left to mark: no second receipt.
	n, err = svc.MarkRead(ctx, ravi.ID, conv.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, reads.all(), 1)
}

func TestConversationService_OutsidersAndEmptyMessages(t *testing.T) {
	h := newHarness(t)
	svc := newConversationService(h)
	ctx := context.Background()
	asha := h.profile(t, "asha")
	ravi := h.profile(t, "ravi")
	kiran := h.profile(t, "kiran")
	conv, err := svc.Start(ctx, asha.ID, ravi.ID)
	require.NoError(t, err)

	_, err = svc.Send(ctx, SendMessageInput{SenderID: kiran.ID, ConversationID: conv.ID, Content: "hi"})
	assertAppCode(t, err, models.CodeForbidden)
	_, err = svc.Messages(ctx, kiran.ID, conv.ID, repository.Page{})
	assertAppCode(t, err, models.CodeForbidden)

	_, err = svc.Send(ctx, SendMessageInput{SenderID: asha.ID, ConversationID: conv.ID, Content: " "})
	assertAppCode(t, err, models.CodeValidation)

	post, err := h.posts().CreatePost(ctx, CreatePostInput{UserID: kiran.ID, Content: "look"})
	require.NoError(t, err)
	shared, err := svc.Send(ctx, SendMessageInput{SenderID: asha.ID, ConversationID: conv.ID, SharedPostID: &post.ID})
	require.NoError(t, err)
	assert.Empty(t, shared.Content)

	_, err = svc.Start(ctx, asha.ID, 999)
	assertAppCode(t, err, models.CodeNotFound)

	list, err := svc.List(ctx, ravi.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}
