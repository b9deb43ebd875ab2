// Package blob persists synthesized audio on the local filesystem or S3.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ncecere/voiceclone/internal/config"
)

var ErrNotFound = errors.New("object not found")

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	Metadata    map[string]string
	Encrypted   bool
}

type Store interface {
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// store layers optional encryption over a backend.
type store struct {
	backend   Store
	encryptor *encryptor
}

func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	backend, err := buildBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	enc, err := newEncryptor(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	return &store{backend: backend, encryptor: enc}, nil
}

func buildBackend(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "s3":
		awsCfg, err := loadS3Config(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return newS3Store(cfg.S3, awsCfg)
	case "", "local":
		return newLocalStore(cfg.Local)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func (s *store) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (ObjectInfo, error) {
	if s.encryptor == nil {
		return s.backend.Put(ctx, key, body, opts)
	}
	encReader, size, metadata, err := s.encryptor.encrypt(body)
	if err != nil {
		return ObjectInfo{}, err
	}
	info, err := s.backend.Put(ctx, key, encReader, PutOptions{
		ContentType: opts.ContentType,
		Metadata:    mergeMetadata(opts.Metadata, metadata),
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	info.Size = size
	info.Encrypted = true
	return info, nil
}

func (s *store) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	reader, info, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	if !isEncrypted(info.Metadata) {
		return reader, info, nil
	}
	defer reader.Close()
	if s.encryptor == nil {
		return nil, ObjectInfo{}, fmt.Errorf("object %s is encrypted but no storage.encryption_key is set", key)
	}
	decReader, size, err := s.encryptor.decrypt(reader)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	info.Size = size
	info.Encrypted = true
	return decReader, info, nil
}

func (s *store) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

func mergeMetadata(a, b map[string]string) map[string]string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	merged := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return merged
}

func isEncrypted(meta map[string]string) bool {
	_, ok := meta[encryptionMetadataKey]
	return ok
}
