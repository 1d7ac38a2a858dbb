package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Trait 描述人格设定中的一段素材，按关键词注入提示词。
type Trait struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Keywords []string `json:"keywords"`
}

// Persona 是智能体的固定人格设定，决定发帖语气与自我描述。
type Persona struct {
	Name      string  `json:"name"`
	Bio       string  `json:"bio"`
	Traits    []Trait `json:"traits"`
	maxTraits int
}

// Load 从 JSON 文件加载人格设定。
func Load(path string, maxTraits int) (*Persona, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("人格文件路径不能为空")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("解析人格文件路径失败: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("读取人格文件失败: %w", err)
	}
	defer file.Close()

	var p Persona
	if err := json.NewDecoder(file).Decode(&p); err != nil {
		return nil, fmt.Errorf("解析人格文件失败: %w", err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("人格设定缺少 name 字段")
	}
	if maxTraits <= 0 {
		maxTraits = 3
	}
	p.maxTraits = maxTraits
	return &p, nil
}

// Default 返回不依赖外部文件的最小人格设定。
func Default() *Persona {
	return &Persona{
		Name:      "openagent",
		Bio:       "An autonomous agent posting about whatever crosses its timeline.",
		maxTraits: 3,
	}
}

// Preamble 渲染注入系统提示词的人格前言，附带与上下文相关的素材。
func (p *Persona) Preamble(context string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. %s", p.Name, p.Bio)

	for _, trait := range p.Relevant(context) {
		b.WriteString("\n")
		if trait.Title != "" {
			b.WriteString(trait.Title + ": ")
		}
		b.WriteString(trait.Content)
	}
	return b.String()
}

// Relevant 按关键词挑选与上下文相关的素材，最多 maxTraits 条。
// 没有关键词的素材视为常驻素材，始终入选。
func (p *Persona) Relevant(context string) []Trait {
	if p == nil {
		return nil
	}
	context = strings.ToLower(context)

	limit := p.maxTraits
	if limit <= 0 {
		limit = 3
	}

	results := make([]Trait, 0, limit)
	for _, trait := range p.Traits {
		if matches(trait, context) {
			results = append(results, trait)
			if len(results) >= limit {
				break
			}
		}
	}
	return results
}

func matches(trait Trait, context string) bool {
	if len(trait.Keywords) == 0 {
		return true
	}
	for _, keyword := range trait.Keywords {
		normalized := strings.ToLower(strings.TrimSpace(keyword))
		if normalized == "" {
			continue
		}
		if strings.Contains(context, normalized) {
			return true
		}
	}
	return false
}
