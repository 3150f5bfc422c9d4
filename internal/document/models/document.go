package models

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"clearinghouse/internal/ids"
)

// HashSize is the length of a chain hash.
const HashSize = sha256.Size

// Seed is hash_chain_prev of the first document under every pid.
func Seed() []byte {
	return make([]byte, HashSize)
}

// Document is one immutable entry of a pid's log.
//
// Invariants:
//   - Seq starts at 1 and increases by one per append under a pid
//   - HashChainPrev is the Hash of the document with Seq-1, or Seed()
//   - ReceivedAt never decreases within a pid
//   - Header carries no payload; the payload lives sealed in SealedPayload
//   - KeyScope and KeyID name the keyring entry SealedPayload was sealed with
type Document struct {
	DocumentID    string         `json:"document_id"`
	Pid           string         `json:"pid"`
	Seq           int64          `json:"seq"`
	DocTypeID     string         `json:"doc_type_id"`
	ReceivedAt    time.Time      `json:"received_at"`
	HashChainPrev []byte         `json:"hash_chain_prev"`
	Hash          []byte         `json:"hash"`
	Header        ids.IdsMessage `json:"header"`
	SealedPayload []byte         `json:"sealed_payload,omitempty"`
	KeyScope      string         `json:"key_scope"`
	KeyID         string         `json:"key_id"`
}

// chainRecord is the serialized form a document hash covers. Field order is
// fixed by the struct; ReceivedAt is rendered in UTC so storage round trips
// do not change the encoding.
type chainRecord struct {
	DocumentID    string         `json:"document_id"`
	Pid           string         `json:"pid"`
	Seq           int64          `json:"seq"`
	DocTypeID     string         `json:"doc_type_id"`
	ReceivedAt    string         `json:"received_at"`
	HashChainPrev []byte         `json:"hash_chain_prev"`
	Header        ids.IdsMessage `json:"header"`
	SealedPayload []byte         `json:"sealed_payload,omitempty"`
	KeyScope      string         `json:"key_scope"`
	KeyID         string         `json:"key_id"`
}

// ComputeHash returns H(document serialized without its own hash).
func (d *Document) ComputeHash() ([]byte, error) {
	raw, err := json.Marshal(chainRecord{
		DocumentID:    d.DocumentID,
		Pid:           d.Pid,
		Seq:           d.Seq,
		DocTypeID:     d.DocTypeID,
		ReceivedAt:    d.ReceivedAt.UTC().Format(time.RFC3339Nano),
		HashChainPrev: d.HashChainPrev,
		Header:        d.Header,
		SealedPayload: d.SealedPayload,
		KeyScope:      d.KeyScope,
		KeyID:         d.KeyID,
	})
	if err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}
	sum := sha256.Sum256(raw)
	return sum[:], nil
}

// VerifyHash reports whether Hash matches the document content.
func (d *Document) VerifyHash() bool {
	h, err := d.ComputeHash()
	return err == nil && bytes.Equal(h, d.Hash)
}

// Receipt acknowledges a durable append.
type Receipt struct {
	DocumentID string    `json:"document_id"`
	Pid        string    `json:"pid"`
	ReceivedAt time.Time `json:"received_at"`
	ChainHash  string    `json:"chain_hash"`
}

// ReceiptFor builds the receipt of a stored document.
func ReceiptFor(d *Document) Receipt {
	return Receipt{
		DocumentID: d.DocumentID,
		Pid:        d.Pid,
		ReceivedAt: d.ReceivedAt,
		ChainHash:  hex.EncodeToString(d.Hash),
	}
}

// Verification is the outcome of recomputing a pid's chain.
type Verification struct {
	Pid       string `json:"pid"`
	Documents int    `json:"documents"`
	Valid     bool   `json:"valid"`
	Head      string `json:"head,omitempty"`
	BrokenAt  string `json:"broken_at,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
