package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

const defaultLocalDir = "data/uploads"

type localConfig struct {
	Dir string `json:"dir"`
}

type localStore struct {
	dir string
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	c := &localConfig{}
	if err := decodeConfig(args, c); err != nil {
		return nil, err
	}
	if c.Dir == "" {
		c.Dir = defaultLocalDir
	}
	return &localStore{dir: c.Dir}, nil
}

func (s *localStore) Type() string {
	return "local"
}

func (s *localStore) Save(_ context.Context, key string, r ReadSeekCloser, _ int64) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	out, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err = io.Copy(out, r)
	return err
}
