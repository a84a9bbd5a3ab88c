package support

import "strings"

// Tag 表示回复目录的分类标签。
type Tag string

const (
	Onboarding    Tag = "onboarding"
	Overwhelmed   Tag = "overwhelmed"
	Encouragement Tag = "encouragement"
	Coping        Tag = "coping"
	Crisis        Tag = "crisis"
	General       Tag = "general"
)

// keywordGroup 是一组关键词及其命中时对应的标签。
type keywordGroup struct {
	Tag      Tag
	Keywords []string
}

// 顺序即优先级：先命中的分组胜出，即使后面的分组也能匹配。
var keywordGroups = []keywordGroup{
	{Tag: Overwhelmed, Keywords: []string{"overwhelmed", "too much", "stressed", "anxious"}},
	{Tag: Encouragement, Keywords: []string{"encourage", "motivation", "hope", "support"}},
	{Tag: Coping, Keywords: []string{"cope", "coping", "strategy", "tip", "help"}},
	{Tag: Crisis, Keywords: []string{"panic", "crisis", "emergency"}},
}

// Classify 根据关键词包含关系为用户输入选出唯一标签，未命中时返回 General。
func Classify(text string) Tag {
	normalized := strings.ToLower(text)
	if strings.TrimSpace(normalized) == "" {
		return General
	}

	for _, group := range keywordGroups {
		for _, word := range group.Keywords {
			if strings.Contains(normalized, word) {
				return group.Tag
			}
		}
	}
	return General
}

// ParseTag 将字符串解析为已知标签；未知值返回 General 和 false。
func ParseTag(raw string) (Tag, bool) {
	switch tag := Tag(strings.ToLower(strings.TrimSpace(raw))); tag {
	case Onboarding, Overwhelmed, Encouragement, Coping, Crisis, General:
		return tag, true
	default:
		return General, false
	}
}
