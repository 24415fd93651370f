package realtime

import (
	"context"
	"fmt"
	"slices"

	"campushub/internal/models"
)

// ViewConversation is the Kind of ConversationView.
const ViewConversation = "conversation"

// ConversationLoader returns the messages of a conversation, oldest first, and the
// number of messages from the other participant that viewerID has not read.
type ConversationLoader func(ctx context.Context, conversationID, viewerID uint) ([]models.DirectMessage, int64, error)

// ReadReceipt is the row of a conversation_reads event: readerID marked every
// message from the other participant as read.
type ReadReceipt struct {
	ConversationID uint `json:"conversation_id"`
	ReaderID       uint `json:"reader_id"`
}

// ConversationView holds one conversation's messages, its unread counter and last
// message for a single viewer.
type ConversationView struct {
	conversationID uint
	viewerID       uint
	load           ConversationLoader

	messages []models.DirectMessage
	unread   int64
}

// ConversationSnapshot is the serialized state of a ConversationView.
type ConversationSnapshot struct {
	ConversationID uint                   `json:"conversation_id"`
	Messages       []models.DirectMessage `json:"messages"`
	UnreadCount    int64                  `json:"unread_count"`
	LastMessage    *models.DirectMessage  `json:"last_message,omitempty"`
}

// ConversationSummary is sent with each conversation patch.
type ConversationSummary struct {
	UnreadCount int64                 `json:"unread_count"`
	LastMessage *models.DirectMessage `json:"last_message,omitempty"`
}

func NewConversationView(conversationID, viewerID uint, load ConversationLoader) *ConversationView {
	return &ConversationView{conversationID: conversationID, viewerID: viewerID, load: load}
}

func (v *ConversationView) Kind() string { return ViewConversation }

func (v *ConversationView) Filters() []Filter {
	return []Filter{
		FilterID(TableDirectMessages, "conversation_id", v.conversationID),
		FilterID(TableConversationReads, "conversation_id", v.conversationID),
	}
}

// Reload replaces local state with the loader's result.
func (v *ConversationView) Reload(ctx context.Context) error {
	if v.load == nil {
		return fmt.Errorf("conversation %d: no loader", v.conversationID)
	}
	msgs, unread, err := v.load(ctx, v.conversationID, v.viewerID)
	if err != nil {
		return fmt.Errorf("reload conversation %d: %w", v.conversationID, err)
	}
	v.messages = msgs
	v.unread = unread
	return nil
}

// Messages returns the current messages, oldest first.
func (v *ConversationView) Messages() []models.DirectMessage {
	return slices.Clone(v.messages)
}

// UnreadCount is the number of unread messages from the other participant.
func (v *ConversationView) UnreadCount() int64 { return v.unread }

// LastMessage is the newest message, or nil for an empty conversation.
func (v *ConversationView) LastMessage() *models.DirectMessage {
	if len(v.messages) == 0 {
		return nil
	}
	m := v.messages[len(v.messages)-1]
	return &m
}

func (v *ConversationView) Snapshot() any {
	return ConversationSnapshot{
		ConversationID: v.conversationID,
		Messages:       v.Messages(),
		UnreadCount:    v.unread,
		LastMessage:    v.LastMessage(),
	}
}

func (v *ConversationView) Summary() any {
	return ConversationSummary{UnreadCount: v.unread, LastMessage: v.LastMessage()}
}

func (v *ConversationView) Apply(ev ChangeEvent) Decision {
	switch ev.Table {
	case TableDirectMessages:
		return v.applyMessage(ev)
	case TableConversationReads:
		return v.applyRead(ev)
	default:
		return Ignored
	}
}

func (v *ConversationView) countsAsUnread(m models.DirectMessage) bool {
	return m.SenderID != v.viewerID && !m.IsRead
}

func (v *ConversationView) applyMessage(ev ChangeEvent) Decision {
	var msg models.DirectMessage
	if err := ev.Decode(&msg); err != nil || msg.ID == 0 {
		return Refetch
	}
	if msg.ConversationID != v.conversationID {
		return Ignored
	}
	i := indexOf(v.messages, func(m models.DirectMessage) uint { return m.ID }, msg.ID)

	switch ev.Type {
	case Insert:
		if i >= 0 {
			return Ignored
		}
		v.insertOrdered(msg)
		if v.countsAsUnread(msg) {
			v.unread++
		}
		return Patched
	case Update:
		if i < 0 {
			return Refetch
		}
		old := v.messages[i]
		v.messages[i] = msg
		v.adjustUnread(v.countsAsUnread(old), v.countsAsUnread(msg))
		return Patched
	case Delete:
		if i < 0 {
			return Ignored
		}
		old := v.messages[i]
		v.messages = slices.Delete(v.messages, i, i+1)
		v.adjustUnread(v.countsAsUnread(old), false)
		return Patched
	default:
		return Refetch
	}
}

func (v *ConversationView) applyRead(ev ChangeEvent) Decision {
	var rr ReadReceipt
	if err := ev.Decode(&rr); err != nil || rr.ReaderID == 0 {
		return Refetch
	}
	if rr.ConversationID != v.conversationID {
		return Ignored
	}
	changed := false
	for i := range v.messages {
		if v.messages[i].SenderID != rr.ReaderID && !v.messages[i].IsRead {
			v.messages[i].IsRead = true
			changed = true
		}
	}
	if rr.ReaderID == v.viewerID && v.unread != 0 {
		v.unread = 0
		changed = true
	}
	if !changed {
		return Ignored
	}
	return Patched
}

func (v *ConversationView) adjustUnread(was, is bool) {
	switch {
	case was && !is:
		if v.unread > 0 {
			v.unread--
		}
	case !was && is:
		v.unread++
	}
}

// insertOrdered keeps messages sorted by CreatedAt then ID; live inserts almost
// always land at the end.
func (v *ConversationView) insertOrdered(msg models.DirectMessage) {
	pos := len(v.messages)
	for pos > 0 {
		prev := v.messages[pos-1]
		if prev.CreatedAt.Before(msg.CreatedAt) || (prev.CreatedAt.Equal(msg.CreatedAt) && prev.ID < msg.ID) {
			break
		}
		pos--
	}
	v.messages = slices.Insert(v.messages, pos, msg)
}
