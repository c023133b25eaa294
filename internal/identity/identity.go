package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrNotLoggedIn 本机尚未登录
var ErrNotLoggedIn = errors.New("no profile on this device")

// Identity 本机身份，跨会话保留
type Identity struct {
	ProfileName string `yaml:"profile_name"`
	IsStation   bool   `yaml:"is_station"`
	ClientID    string `yaml:"client_id"`
}

// LoggedIn 是否已设置用户名或站点模式
func (i Identity) LoggedIn() bool {
	return i.ProfileName != "" || i.IsStation
}

// DisplayName 控制权显示名称
func (i Identity) DisplayName() string {
	if i.ProfileName != "" {
		return i.ProfileName
	}
	if i.IsStation {
		return "Station"
	}
	return i.ClientID
}

// FileStore 基于 YAML 文件的身份存储
type FileStore struct {
	path string
}

// NewFileStore 创建文件存储
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path 文件路径
func (s *FileStore) Path() string {
	return s.path
}

// Load 读取身份；文件不存在时生成新的 client_id 并保存
func (s *FileStore) Load() (Identity, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		id := Identity{ClientID: uuid.New().String()}
		return id, s.Save(id)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("failed to read identity: %w", err)
	}

	var id Identity
	if err := yaml.Unmarshal(data, &id); err != nil {
		return Identity{}, fmt.Errorf("failed to parse identity %s: %w", s.path, err)
	}
	if id.ClientID == "" {
		id.ClientID = uuid.New().String()
		if err := s.Save(id); err != nil {
			return Identity{}, err
		}
	}
	return id, nil
}

// Save 写入身份
func (s *FileStore) Save(id Identity) error {
	data, err := yaml.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create identity dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write identity: %w", err)
	}
	return nil
}

// Login 以用户名登录（调用方负责白名单校验）
func (s *FileStore) Login(profileName string) (Identity, error) {
	id, err := s.Load()
	if err != nil {
		return Identity{}, err
	}
	id.ProfileName = profileName
	id.IsStation = false
	return id, s.Save(id)
}

// LoginStation 切换为站点模式
func (s *FileStore) LoginStation() (Identity, error) {
	id, err := s.Load()
	if err != nil {
		return Identity{}, err
	}
	id.ProfileName = ""
	id.IsStation = true
	return id, s.Save(id)
}

// Logout 清除用户名与站点标记，保留 client_id
func (s *FileStore) Logout() error {
	id, err := s.Load()
	if err != nil {
		return err
	}
	id.ProfileName = ""
	id.IsStation = false
	return s.Save(id)
}

// Require 读取已登录的身份
func (s *FileStore) Require() (Identity, error) {
	id, err := s.Load()
	if err != nil {
		return Identity{}, err
	}
	if !id.LoggedIn() {
		return Identity{}, ErrNotLoggedIn
	}
	return id, nil
}
