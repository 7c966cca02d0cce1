package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const fileExt = ".yaml"

// FileStore 每个会话一个 YAML 文件
type FileStore struct {
	dir string
}

// NewFileStore 使用目录 dir, 不存在时创建
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("checkpoint directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create checkpoint directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string { return filepath.Join(s.dir, id+fileExt) }

// Save 先写临时文件再改名
func (s *FileStore) Save(_ context.Context, st *State) error {
	if st.SessionID == "" {
		return errors.New("checkpoint without session id")
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", st.SessionID, err)
	}
	tmp, err := os.CreateTemp(s.dir, st.SessionID+"-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(st.SessionID))
}

func (s *FileStore) Load(_ context.Context, id string) (*State, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	st := new(State)
	if err := yaml.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", id, err)
	}
	return st, nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), fileExt); ok && !e.IsDir() {
			ids = append(ids, name)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FileStore) Close() error { return nil }
