package storage

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketDrafts     = []byte("drafts")
	bucketLastActive = []byte("last_active")
)

// BboltStorage keeps client-side state that should survive a restart. It
// never stores messages: timelines are always reloaded from the server.
type BboltStorage struct {
	db  *bbolt.DB
	now func() time.Time
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketDrafts); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketLastActive); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db, now: time.Now}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// SaveDraft stores the composer text of a conversation. Blank text removes
// the draft.
func (s *BboltStorage) SaveDraft(conversationID, text string) error {
	if text == "" {
		return s.DeleteDraft(conversationID)
	}
	return s.put(bucketDrafts, &DBDraft{
		ConversationID: conversationID,
		Text:           text,
		UpdatedAt:      s.now().Unix(),
	})
}

// Draft returns the saved text, or an empty string when there is none.
func (s *BboltStorage) Draft(conversationID string) (string, error) {
	var draft DBDraft
	found, err := s.get(bucketDrafts, []byte(conversationID), &draft)
	if err != nil || !found {
		return "", err
	}
	return draft.Text, nil
}

func (s *BboltStorage) DeleteDraft(conversationID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDrafts).Delete([]byte(conversationID))
	})
}

// ListDrafts returns all drafts keyed by conversation id.
func (s *BboltStorage) ListDrafts() (map[string]string, error) {
	drafts := make(map[string]string)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDrafts).ForEach(func(k, v []byte) error {
			var draft DBDraft
			if err := draft.UnmarshalBinary(v); err != nil {
				return fmt.Errorf("corrupt draft %s: %w", string(k), err)
			}
			drafts[draft.ConversationID] = draft.Text
			return nil
		})
	})
	return drafts, err
}

func (s *BboltStorage) SetLastActive(userID, conversationID string) error {
	if conversationID == "" {
		return s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucketLastActive).Delete([]byte(userID))
		})
	}
	return s.put(bucketLastActive, &DBLastActive{UserID: userID, ConversationID: conversationID})
}

func (s *BboltStorage) LastActive(userID string) (string, error) {
	var last DBLastActive
	found, err := s.get(bucketLastActive, []byte(userID), &last)
	if err != nil || !found {
		return "", err
	}
	return last.ConversationID, nil
}

func (s *BboltStorage) put(bucket []byte, item Storeable) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := item.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal %s record: %w", bucket, err)
		}
		return tx.Bucket(bucket).Put(item.Key(), data)
	})
}

func (s *BboltStorage) get(bucket, key []byte, item Storeable) (bool, error) {
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucket).Get(key)
		if data == nil {
			return nil
		}
		found = true
		return item.UnmarshalBinary(data)
	})
	return found, err
}
