package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ncecere/voiceclone/internal/config"
)

const sidecarSuffix = ".meta.json"

// localStore keeps each object as a file next to a JSON sidecar.
type localStore struct {
	root string
}

type sidecar struct {
	ContentType string            `json:"content_type"`
	Size        int64             `json:"size"`
	Metadata    map[string]string `json:"metadata"`
}

func newLocalStore(cfg config.StorageLocalConfig) (*localStore, error) {
	root := strings.TrimSpace(cfg.Directory)
	if root == "" {
		root = "./data/outputs"
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create local storage dir: %w", err)
	}
	return &localStore{root: root}, nil
}

// Put writes the sidecar first so a visible object always has metadata.
func (s *localStore) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	path, err := s.resolve(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	staged, size, err := stage(filepath.Dir(path), body)
	if err != nil {
		return ObjectInfo{}, err
	}
	defer os.Remove(staged)

	side := sidecar{ContentType: opts.ContentType, Size: size, Metadata: opts.Metadata}
	if err := side.save(path + sidecarSuffix); err != nil {
		return ObjectInfo{}, err
	}
	if err := os.Rename(staged, path); err != nil {
		return ObjectInfo{}, fmt.Errorf("publish %s: %w", key, err)
	}
	return side.info(key), nil
}

func (s *localStore) Get(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ObjectInfo{}, ErrNotFound
	}
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	side, err := loadSidecar(path + sidecarSuffix)
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, err
	}
	return f, side.info(key), nil
}

// Delete removes the object and its sidecar; missing files are not an error.
func (s *localStore) Delete(_ context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	for _, p := range []string{path, path + sidecarSuffix} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// resolve maps key onto a path under root, rejecting keys that escape it.
func (s *localStore) resolve(key string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(key))
	if rel == "." || filepath.IsAbs(rel) || !filepath.IsLocal(rel) || strings.HasSuffix(rel, sidecarSuffix) {
		return "", fmt.Errorf("invalid key: %q", key)
	}
	return filepath.Join(s.root, rel), nil
}

// stage copies body into a synced temp file inside dir.
func stage(dir string, body io.Reader) (string, int64, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", 0, err
	}
	f, err := os.CreateTemp(dir, ".put-*.tmp")
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(f, body)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", 0, err
	}
	return f.Name(), n, nil
}

func (m sidecar) info(key string) ObjectInfo {
	return ObjectInfo{Key: key, Size: m.Size, ContentType: m.ContentType, Metadata: m.Metadata}
}

func (m sidecar) save(path string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o640)
}

func loadSidecar(path string) (sidecar, error) {
	var m sidecar
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode sidecar: %w", err)
	}
	return m, nil
}
