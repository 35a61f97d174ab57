package extract

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/run-bigpig/bbn/internal/models"
)

// LoadSubjects 读取受试者数组
// encoding 为空或 utf-8 时直接读取，否则按 WHATWG 编码名（如 gbk、big5）转码
func LoadSubjects(path, encoding string) ([]models.Subject, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := decodingReader(f, encoding)
	if err != nil {
		return nil, err
	}
	return DecodeSubjects(r)
}

// DecodeSubjects 解析受试者数组
func DecodeSubjects(r io.Reader) ([]models.Subject, error) {
	var subjects []models.Subject
	if err := json.NewDecoder(r).Decode(&subjects); err != nil {
		return nil, fmt.Errorf("decode subjects: %w", err)
	}
	return subjects, nil
}

// decodingReader 按指定编码包装 reader
func decodingReader(r io.Reader, encoding string) (io.Reader, error) {
	name := strings.ToLower(strings.TrimSpace(encoding))
	if name == "" || name == "utf-8" || name == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported input encoding %q: %w", encoding, err)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
