// Package realtime carries row change events from writers to live views and keeps
// each view's local state reconciled with the store.
package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// EventType is the kind of row change.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Tables with change events.
const (
	TableDirectMessages    = "direct_messages"
	TableConversationReads = "conversation_reads"
	TablePosts             = "posts"
	TablePostAuras         = "post_auras"
	TableComments          = "comments"
	TableCircleMessages    = "circle_messages"
	TableCirclePosts       = "circle_posts"
	TableNotifications     = "notifications"
	TablePollVotes         = "poll_votes"
	TableAuthEvents        = "auth_events"
)

// Scope tags an event with a column value so subscribers can filter on it.
type Scope struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// ScopeID is a Scope on a numeric id column.
func ScopeID(column string, id uint) Scope {
	return Scope{Column: column, Value: strconv.FormatUint(uint64(id), 10)}
}

// ChangeEvent is one row change. Record is the new row (INSERT, UPDATE); OldRecord
// is the previous row when known (UPDATE, DELETE).
type ChangeEvent struct {
	Table      string          `json:"table"`
	Type       EventType       `json:"type"`
	Record     json.RawMessage `json:"record,omitempty"`
	OldRecord  json.RawMessage `json:"old_record,omitempty"`
	CommitTime time.Time       `json:"commit_time"`
	Scopes     []Scope         `json:"scopes,omitempty"`
}

// NewEvent marshals record into an event. DELETE events carry the row in OldRecord.
func NewEvent(table string, typ EventType, record any, scopes ...Scope) (ChangeEvent, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return ChangeEvent{}, fmt.Errorf("marshal %s record: %w", table, err)
	}
	ev := ChangeEvent{Table: table, Type: typ, CommitTime: time.Now().UTC(), Scopes: scopes}
	if typ == Delete {
		ev.OldRecord = raw
	} else {
		ev.Record = raw
	}
	return ev, nil
}

// Row returns the most specific row payload: Record when present, else OldRecord.
func (e ChangeEvent) Row() json.RawMessage {
	if len(e.Record) > 0 && string(e.Record) != "null" {
		return e.Record
	}
	return e.OldRecord
}

// Decode unmarshals Row into v.
func (e ChangeEvent) Decode(v any) error {
	row := e.Row()
	if len(row) == 0 {
		return fmt.Errorf("%s %s event has no row", e.Table, e.Type)
	}
	return json.Unmarshal(row, v)
}

// Filter selects events of one table, optionally narrowed to one column value.
type Filter struct {
	Table  string
	Column string
	Value  string
}

// FilterID is a Filter on a numeric id column.
func FilterID(table, column string, id uint) Filter {
	return Filter{Table: table, Column: column, Value: strconv.FormatUint(uint64(id), 10)}
}

// Channel is the pub/sub channel name for f: changes:<table> or changes:<table>:<column>=<value>.
func (f Filter) Channel() string {
	if f.Column == "" {
		return "changes:" + f.Table
	}
	return "changes:" + f.Table + ":" + f.Column + "=" + f.Value
}

// Subject is the NATS subject for f: changes.<table> or changes.<table>.<column>.<value>.
func (f Filter) Subject() string {
	if f.Column == "" {
		return "changes." + f.Table
	}
	return "changes." + f.Table + "." + f.Column + "." + f.Value
}

// Filters returns every filter an event is delivered under.
func (e ChangeEvent) Filters() []Filter {
	out := make([]Filter, 0, len(e.Scopes)+1)
	out = append(out, Filter{Table: e.Table})
	for _, s := range e.Scopes {
		out = append(out, Filter{Table: e.Table, Column: s.Column, Value: s.Value})
	}
	return out
}
