package ats

import (
	"github.com/hireloop-dev/hireloop-store/internal/engine"
	"github.com/hireloop-dev/hireloop-store/internal/vault"
)

// Notes stores free-text notes on candidates. When a master key is
// configured, note bodies are AES-GCM encrypted before they reach the
// store and decrypted on the way out.
type Notes struct {
	col       *Collection
	masterKey []byte
}

// NewNotes creates the notes store. A nil or empty masterKey stores note
// bodies in plain text.
func NewNotes(store engine.Store, masterKey []byte) *Notes {
	return &Notes{
		col:       NewCollection(store, CollectionCandidateNotes, true),
		masterKey: masterKey,
	}
}

// Add appends a note to a candidate.
func (n *Notes) Add(ctx Context, candidateID, authorName, content string) (string, error) {
	body := content
	encrypted := false
	if len(n.masterKey) > 0 {
		ciphertext, err := vault.Encrypt(content, n.masterKey)
		if err != nil {
			return "", err
		}
		body = ciphertext
		encrypted = true
	}

	return n.col.Add(ctx, engine.Document{
		"candidateId": candidateID,
		"content":     body,
		"encrypted":   encrypted,
		"authorId":    ctx.UserID,
		"authorName":  authorName,
	})
}

// List returns a candidate's notes, newest first, decrypting bodies written
// under the configured master key.
func (n *Notes) List(ctx Context, candidateID string) ([]CandidateNote, error) {
	docs, err := n.col.Find(ctx, engine.Query{
		Filters:    []engine.Filter{{Field: "candidateId", Value: candidateID}},
		OrderBy:    "createdAt",
		Descending: true,
	})
	if err != nil {
		return nil, err
	}

	notes := make([]CandidateNote, 0, len(docs))
	for _, doc := range docs {
		var note CandidateNote
		if err := FromDocument(doc, &note); err != nil {
			return nil, err
		}
		if enc, _ := doc["encrypted"].(bool); enc {
			plaintext, err := vault.Decrypt(note.Content, n.masterKey)
			if err != nil {
				return nil, err
			}
			note.Content = plaintext
		}
		notes = append(notes, note)
	}
	return notes, nil
}

// Remove deletes one note through the tenant-enforced remove path.
func (n *Notes) Remove(ctx Context, id string) error {
	return n.col.Remove(ctx, id)
}
