package paths

import (
	"os"
	"path/filepath"
)

// GetDataDir 获取应用数据目录
func GetDataDir() string {
	userConfigDir, err := os.UserConfigDir()
	if err != nil || userConfigDir == "" {
		return filepath.Join(".", "data")
	}
	return filepath.Join(userConfigDir, "bbn")
}

// DefaultIndexPath 运行索引的默认 sqlite 文件
func DefaultIndexPath() string {
	return filepath.Join(GetDataDir(), "runs.db")
}

// EnsureParentDir 确保文件所在目录存在
func EnsureParentDir(file string) error {
	return os.MkdirAll(filepath.Dir(file), 0755)
}
