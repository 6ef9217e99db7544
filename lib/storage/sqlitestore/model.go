package sqlitestore

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/portwatch/nostrelay/lib/nostr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// eventRow is the GORM model backing the "events" table. Tags are stored as
// their canonical JSON array so arbitrary tag shapes round-trip exactly;
// DTag is denormalized into its own indexed column since parameterized-
// replaceable lookups key on it directly.
type eventRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	PubKey    string `gorm:"index;size:64"`
	CreatedAt int64  `gorm:"index"`
	Kind      int    `gorm:"index"`
	TagsJSON  string
	Content   string
	Sig       string
	DTag      string `gorm:"index;size:512"`
}

func (eventRow) TableName() string { return "events" }

func rowFromEvent(e *nostr.Event) (*eventRow, error) {
	tagsJSON, err := json.Marshal(e.Tags)
	if err != nil {
		return nil, err
	}
	return &eventRow{
		ID:        e.ID,
		PubKey:    e.PubKey,
		CreatedAt: e.CreatedAt,
		Kind:      e.Kind,
		TagsJSON:  string(tagsJSON),
		Content:   e.Content,
		Sig:       e.Sig,
		DTag:      e.DTag(),
	}, nil
}

func (r *eventRow) toEvent() (*nostr.Event, error) {
	var tags nostr.Tags
	if err := json.Unmarshal([]byte(r.TagsJSON), &tags); err != nil {
		return nil, err
	}
	return &nostr.Event{
		ID:        r.ID,
		PubKey:    r.PubKey,
		CreatedAt: r.CreatedAt,
		Kind:      r.Kind,
		Tags:      tags,
		Content:   r.Content,
		Sig:       r.Sig,
	}, nil
}
