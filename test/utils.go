package test

import (
	"path/filepath"
	"runtime"
)

func GetDataDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "data")
}

// DataFile 返回测试数据目录下的文件路径
func DataFile(name string) string {
	return filepath.Join(GetDataDir(), name)
}
