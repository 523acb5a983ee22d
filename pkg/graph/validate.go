package graph

import "fmt"

// validatePayload returns nil when p is usable as a draft: at least one
// entity, every entity named and typed, every relation complete.
func validatePayload(p *extractionPayload) error {
	var errs []string
	if len(p.Entities) == 0 {
		errs = append(errs, "未提取到任何实体")
	}
	for i, e := range p.Entities {
		if e.Name == "" {
			errs = append(errs, fmt.Sprintf("实体[%d]缺少名称", i))
		}
		if e.Type == "" {
			errs = append(errs, fmt.Sprintf("实体[%d]缺少类型", i))
		}
	}
	for i, r := range p.Relations {
		if r.Source == "" {
			errs = append(errs, fmt.Sprintf("关系[%d]缺少源实体", i))
		}
		if r.Target == "" {
			errs = append(errs, fmt.Sprintf("关系[%d]缺少目标实体", i))
		}
		if r.Type == "" {
			errs = append(errs, fmt.Sprintf("关系[%d]缺少关系类型", i))
		}
	}
	if len(errs) > 0 {
		return &ExtractionValidationError{Errors: errs}
	}
	return nil
}
