package pkg

import (
	"io"
	"os"
)

// CheckFileExist 检查文件是否存在
func CheckFileExist(filePath string) (bool, error) {
	_, err := os.Lstat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// OpenOutput 打开输出文件，路径为空时写到 fallback
func OpenOutput(filePath string, fallback io.Writer) (io.WriteCloser, error) {
	if filePath == "" {
		return nopWriteCloser{fallback}, nil
	}
	return os.Create(filePath)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
