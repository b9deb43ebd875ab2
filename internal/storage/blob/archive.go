package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/ncecere/voiceclone/internal/synth"
)

const outputPrefix = "outputs/"

// Archive stores synthesized WAV files under outputs/<uuid>.wav.
type Archive struct {
	store Store
	now   func() time.Time
}

func NewArchive(store Store) *Archive {
	return &Archive{store: store, now: time.Now}
}

func (a *Archive) Archive(ctx context.Context, audio []byte, meta synth.ArchiveMeta) (string, error) {
	id := uuid.NewString()
	_, err := a.store.Put(ctx, outputKey(id), bytes.NewReader(audio), PutOptions{
		ContentType: synth.ContentTypeWAV,
		Metadata: map[string]string{
			"language":   string(meta.Language),
			"engine":     meta.Engine,
			"created-at": a.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive output: %w", err)
	}
	return id, nil
}

// Open returns the archived output with the given id. Ids that are not
// UUIDs are reported as ErrNotFound.
func (a *Archive) Open(ctx context.Context, id string) (io.ReadCloser, ObjectInfo, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ObjectInfo{}, ErrNotFound
	}
	return a.store.Get(ctx, outputKey(parsed.String()))
}

// Remove deletes an archived output. Unknown ids report ErrNotFound.
func (a *Archive) Remove(ctx context.Context, id string) error {
	rc, _, err := a.Open(ctx, id)
	if err != nil {
		return err
	}
	rc.Close()
	parsed, _ := uuid.Parse(id)
	return a.store.Delete(ctx, outputKey(parsed.String()))
}

func outputKey(id string) string {
	return outputPrefix + id + ".wav"
}
