package storage

import (
	"encoding"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// DBDraft is unsent composer text, one per conversation.
type DBDraft struct {
	ConversationID string `msgpack:"conversationId"`
	Text           string `msgpack:"text"`
	UpdatedAt      int64  `msgpack:"updatedAt"`
}

func (d *DBDraft) Key() []byte {
	return []byte(d.ConversationID)
}

func (d *DBDraft) MarshalBinary() (data []byte, err error) {
	type alias DBDraft
	return msgpack.Marshal((*alias)(d))
}

func (d *DBDraft) UnmarshalBinary(data []byte) error {
	type alias DBDraft
	return msgpack.Unmarshal(data, (*alias)(d))
}

// DBLastActive remembers which conversation a user had open, so the client
// can reopen it on the next start.
type DBLastActive struct {
	UserID         string `msgpack:"userId"`
	ConversationID string `msgpack:"conversationId"`
}

func (l *DBLastActive) Key() []byte {
	return []byte(l.UserID)
}

func (l *DBLastActive) MarshalBinary() (data []byte, err error) {
	type alias DBLastActive
	return msgpack.Marshal((*alias)(l))
}

func (l *DBLastActive) UnmarshalBinary(data []byte) error {
	type alias DBLastActive
	return msgpack.Unmarshal(data, (*alias)(l))
}
