package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/run-bigpig/bbn/internal/models"
)

// FileStore 输出目录下的存档与受试者配置文件
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore 创建文件存储，目录不存在时自动创建
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Dir 输出目录
func (s *FileStore) Dir() string {
	return s.dir
}

// SaveFilePath 存档路径 <dir>/<id>.json
func (s *FileStore) SaveFilePath(id int) string {
	return filepath.Join(s.dir, strconv.Itoa(id)+".json")
}

// ConfigPath 受试者配置路径 <dir>/<id>-config.json
func (s *FileStore) ConfigPath(id int) string {
	return filepath.Join(s.dir, strconv.Itoa(id)+"-config.json")
}

// WriteSaveFile 写出存档，每个受试者只写一次
func (s *FileStore) WriteSaveFile(id int, record *models.SaveFile) (string, error) {
	path := s.SaveFilePath(id)
	if err := s.writeJSON(path, record); err != nil {
		return "", fmt.Errorf("write save file %s: %w", path, err)
	}
	return path, nil
}

// ReadSaveFile 读取存档的原始 JSON 对象
func (s *FileStore) ReadSaveFile(id int) (map[string]any, error) {
	return s.readObject(s.SaveFilePath(id))
}

// WriteSubjectConfig 写出受试者配置
func (s *FileStore) WriteSubjectConfig(id int, cfg *models.SubjectConfig) (string, error) {
	path := s.ConfigPath(id)
	if err := s.writeJSON(path, cfg); err != nil {
		return "", fmt.Errorf("write subject config %s: %w", path, err)
	}
	return path, nil
}

// UpdateRoundsCompleted 回写实际完成的轮数，保留文件中的其他字段
func (s *FileStore) UpdateRoundsCompleted(id int, rounds int) error {
	path := s.ConfigPath(id)
	current, err := s.readObject(path)
	if err != nil {
		return err
	}
	current["rounds_completed"] = rounds
	return s.writeJSON(path, current)
}

// readObject 读取 JSON 对象
func (s *FileStore) readObject(path string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return obj, nil
}

// writeJSON 4 空格缩进、不转义 HTML，先写临时文件再改名
func (s *FileStore) writeJSON(path string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
