package coreml

import (
	"github.com/pkg/errors"
	"os"
)

const fileMode = 0644

// Save 写入模型文件，已存在的同名文件将被覆盖
func Save(m *Model, path string) error {
	b, err := m.Marshal()
	if err != nil {
		return errors.Wrap(err, "模型编码出错")
	}
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return errors.Wrapf(err, "无法写入模型文件%s", path)
	}
	return nil
}

func Load(path string) (*Model, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "无法读取模型文件%s", path)
	}
	m, err := Unmarshal(b)
	if err != nil {
		return nil, errors.Wrapf(err, "解析模型文件%s出错", path)
	}
	return m, nil
}
