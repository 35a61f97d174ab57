package embed

import (
	_ "embed"
)

// DefaultPromptsJSON 默认的三角色提示词模板
// 编译时从 prompts.json 嵌入到二进制文件中，可用 -p 指定外部模板覆盖
//
//go:embed prompts.json
var DefaultPromptsJSON []byte
