package ai

import (
	"fmt"
	"strings"
)

// ExtractionSystemPrompt steers knowledge extraction from safety training
// material. The reply must be a single JSON object.
const ExtractionSystemPrompt = `
# 任务背景
你是安全培训领域的知识图谱构建专家。你将收到一段安全培训文档的片段，需要从中抽取结构化知识。

# 输出格式
只输出一个 JSON 对象，不要输出任何解释文字：
` + "```json" + `
{
  "entityTypes": [{"name": "类型名称", "description": "类型说明"}],
  "entities": [{
    "name": "实体名称",
    "type": "实体类型，必须出现在 entityTypes 中",
    "properties": {"属性名": "属性值"},
    "context": "实体所在的原文片段，不超过100字",
    "confidence": 0.9
  }],
  "relationTypes": [{"name": "关系名称", "sourceType": "源实体类型", "targetType": "目标实体类型", "description": "关系说明"}],
  "relations": [{
    "source": "源实体名称",
    "target": "目标实体名称",
    "type": "关系名称",
    "context": "关系所在的原文片段",
    "confidence": 0.9
  }]
}
` + "```" + `

# 常见实体类型
- 风险单元：风险所在的区域或管理单元，如办公场所、配电间、仓库
- 作业活动：在风险单元内开展的操作或管理活动，如设备使用、巡检
- 风险项：导致事故的触发因素或隐患，如电源线破损、通道堵塞
- 后果：风险项可能造成的事故类型，如触电、火灾、机械伤害
- 控制措施：降低风险的技术或管理手段，如定期检查、佩戴防护用品
- 部门：负责或涉及该风险的单位、部门
- 设备、规范：仅在原文明确提到时抽取

# 安全风险辨识表
若片段来自风险辨识表（每行以 [行N] 开头），逐行处理，不要合并不同的行：
- 风险单元 -[contains]-> 作业活动
- 作业活动 -[has-risk]-> 风险项
- 风险项 -[causes]-> 后果
- 控制措施 -[mitigates]-> 风险项
- 风险单元 -[involves]-> 部门
风险等级、风险值、可能性、严重性等评价数据作为风险项的属性。

# 抽取原则
1. 实体名称简洁，保持原文术语，不要泛化
2. 每个实体都必须有类型
3. 关系两端必须是本次抽取出的实体名称
4. 不确定的信息不要抽取
`

// OntologyHint renders the types of a stored ontology as an addition to the
// system prompt.
func OntologyHint(entityTypes, relationTypes []string) string {
	join := func(names []string) string {
		if len(names) == 0 {
			return "无"
		}
		return strings.Join(names, "、")
	}
	return fmt.Sprintf("\n\n**参考本体定义（请优先遵循）：**\n实体类型：%s\n关系类型：%s",
		join(entityTypes), join(relationTypes))
}

// ExtractionUserPrompt wraps one chunk of the input documents.
func ExtractionUserPrompt(index, total int, chunk string) string {
	return fmt.Sprintf("文档片段 (%d/%d):\n\n%s", index+1, total, chunk)
}
