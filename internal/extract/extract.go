package extract

import (
	"fmt"
	"regexp"
)

// addressPattern 匹配 0x 前缀的 40 位十六进制地址，或以 .eth 结尾的名称。
// 词边界保证 39 位或 41 位的残缺地址不会被误判。
var addressPattern = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b|\b\S+\.eth\b`)

// Candidates 从任意记录序列中提取候选钱包地址与 ENS 名称。
// 记录先统一转为文本再扫描，结果保持首次出现的顺序，不做去重，
// 也不做校验和验证；校验留给链客户端的解析阶段。
func Candidates(records []any) []string {
	if len(records) == 0 {
		return nil
	}

	var matches []string
	for _, record := range records {
		text := coerce(record)
		if text == "" {
			continue
		}
		matches = append(matches, addressPattern.FindAllString(text, -1)...)
	}
	return matches
}

// FromTexts 是 Candidates 的便捷形式，输入已经是文本。
func FromTexts(texts []string) []string {
	records := make([]any, len(texts))
	for i, text := range texts {
		records[i] = text
	}
	return Candidates(records)
}

func coerce(record any) string {
	switch v := record.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
