package checkpoint

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"filippo.io/age"

	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

// EncryptedCheckpointer wraps another Checkpointer and encrypts every
// snapshot at rest with an X25519 age identity, for deployments where
// CHECKPOINT_ENCRYPTION_KEY is configured. Checkpoint metadata (task id,
// sequence, node, suspended) stays in the clear; only the snapshot bytes
// are opaque.
type EncryptedCheckpointer struct {
	inner     Checkpointer
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewEncryptedCheckpointer wraps inner, encrypting snapshots to identity's
// own public key so the same key that writes a checkpoint can read it back.
func NewEncryptedCheckpointer(inner Checkpointer, identity *age.X25519Identity) *EncryptedCheckpointer {
	return &EncryptedCheckpointer{inner: inner, identity: identity, recipient: identity.Recipient()}
}

func (c *EncryptedCheckpointer) Save(ctx context.Context, taskID, node string, suspended bool, snapshot []byte) (*roadmap.Checkpoint, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, c.recipient)
	if err != nil {
		return nil, fmt.Errorf("checkpoint encrypt init: %w", err)
	}
	if _, err := w.Write(snapshot); err != nil {
		return nil, fmt.Errorf("checkpoint encrypt write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("checkpoint encrypt close: %w", err)
	}
	return c.inner.Save(ctx, taskID, node, suspended, buf.Bytes())
}

func (c *EncryptedCheckpointer) Latest(ctx context.Context, taskID string) (*roadmap.Checkpoint, error) {
	cp, err := c.inner.Latest(ctx, taskID)
	if err != nil {
		return nil, err
	}
	r, err := age.Decrypt(bytes.NewReader(cp.Snapshot), c.identity)
	if err != nil {
		return nil, fmt.Errorf("checkpoint decrypt: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("checkpoint decrypt read: %w", err)
	}
	cp.Snapshot = plain
	return cp, nil
}

func (c *EncryptedCheckpointer) Delete(ctx context.Context, taskID string) error {
	return c.inner.Delete(ctx, taskID)
}
