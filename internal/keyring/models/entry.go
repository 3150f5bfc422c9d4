package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	dErrors "clearinghouse/pkg/domain-errors"
)

// GlobalScope is the reserved pid under which doc types valid for every
// process are registered.
const GlobalScope = "*"

// SchemaJSON marks doc types whose payloads must be JSON.
const SchemaJSON = "application/json"

// KeySize is the length of an entry key.
const KeySize = chacha20poly1305.KeySize

// Entry admits one document type within a pid and holds the key its payloads
// are sealed with.
//
// Invariants:
//   - DocTypeID is non-empty
//   - Key is exactly KeySize bytes
//   - Schema is empty or SchemaJSON
type Entry struct {
	Pid       string    `json:"pid"`
	DocTypeID string    `json:"doc_type_id"`
	Schema    string    `json:"schema,omitempty"`
	Key       []byte    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the entry invariants.
func (e *Entry) Validate() error {
	switch {
	case e.Pid == "":
		return dErrors.New(dErrors.CodeInvariantViolation, "keyring entry needs a pid")
	case e.DocTypeID == "":
		return dErrors.New(dErrors.CodeInvariantViolation, "keyring entry needs a doc type")
	case len(e.Key) != KeySize:
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("keyring key must be %d bytes", KeySize))
	case e.Schema != "" && e.Schema != SchemaJSON:
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("unsupported schema %q", e.Schema))
	}
	return nil
}

// KeyID fingerprints the entry key. It identifies the key a payload was
// sealed with without revealing it.
func (e *Entry) KeyID() string {
	sum := sha256.Sum256(append([]byte("clearinghouse/key-id/"), e.Key...))
	return hex.EncodeToString(sum[:8])
}

// Ref names the entry a payload is sealed with: its scope and key id.
func (e *Entry) Ref() (scope, keyID string) {
	return e.Pid, e.KeyID()
}

// CheckPayload enforces the entry schema on a payload.
func (e *Entry) CheckPayload(payload string) error {
	if e.Schema == SchemaJSON && payload != "" && !json.Valid([]byte(payload)) {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("payload is not valid JSON for doc type %s", e.DocTypeID))
	}
	return nil
}

// Seal encrypts plaintext bound to pid and documentID. The output is the
// random nonce followed by the ciphertext.
func (e *Entry) Seal(pid, documentID string, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(e.Key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, associatedData(pid, documentID)), nil
}

// Open reverses Seal. Tampering, a wrong key or a different pid/documentID
// all fail authentication.
func (e *Entry) Open(pid, documentID string, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(e.Key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("sealed payload too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, associatedData(pid, documentID))
	if err != nil {
		return nil, fmt.Errorf("open sealed payload: %w", err)
	}
	return plaintext, nil
}

// pid and documentID are length-prefixed so no two pairs share an encoding.
func associatedData(pid, documentID string) []byte {
	ad := make([]byte, 0, 8+len(pid)+len(documentID))
	ad = appendLenPrefixed(ad, pid)
	return appendLenPrefixed(ad, documentID)
}

func appendLenPrefixed(b []byte, s string) []byte {
	n := uint32(len(s))
	b = append(b, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	return append(b, s...)
}

// Material is what a caller supplies when registering a doc type. A missing
// key is derived from the keyring master secret.
type Material struct {
	Schema string `json:"schema,omitempty"`
	Key    []byte `json:"key,omitempty"`
}

// ParseMaterial decodes an optional Material payload; empty means defaults.
func ParseMaterial(payload string) (Material, error) {
	if payload == "" {
		return Material{}, nil
	}
	var m Material
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return Material{}, dErrors.Wrap(err, dErrors.CodeValidation, "payload is not keyring material")
	}
	return m, nil
}

// Description is the public view of an entry; it never carries the key.
type Description struct {
	Pid       string    `json:"pid"`
	DocTypeID string    `json:"doc_type_id"`
	Schema    string    `json:"schema,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (e *Entry) Describe() Description {
	return Description{Pid: e.Pid, DocTypeID: e.DocTypeID, Schema: e.Schema, CreatedAt: e.CreatedAt}
}
