package excel

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	headerScanRows    = 30
	longCellRunes     = 40
	keywordBonus      = 3
	strongHeaderBonus = 10
	numericPenalty    = 8
	longCellPenalty   = 10
)

// headerKeywords are column titles typical for safety risk registers.
var headerKeywords = []string{
	"序号", "风险单元", "作业活动", "危险发生的触发因素和过程描述", "可能导致的后果",
	"风险等级评价", "风险等级", "现有控制措施", "涉及单位或部门",
	"危险因素", "危险源", "控制措施", "责任部门",
}

// strongHeaderSets are column groups that identify a header row on their own.
var strongHeaderSets = [][]string{
	{"风险单元", "作业活动"},
	{"危险发生的触发因素和过程描述", "可能导致的后果"},
	{"序号", "名称"},
}

// subHeaderTokens appear in the second line of two-line risk assessment
// headers (LEC scoring and the like).
var subHeaderTokens = map[string]struct{}{
	"L": {}, "E": {}, "C": {}, "D": {}, "S": {}, "R": {},
	"可能性": {}, "严重性": {}, "暴露频率": {}, "风险值": {}, "分值": {}, "等级": {},
}

// DetectHeaderRow returns the index of the most header-like row among the
// first rows of a sheet. Ties go to the earlier row.
func DetectHeaderRow(rows [][]string) int {
	best, bestScore := 0, -1<<31
	limit := min(len(rows), headerScanRows)
	for i := 0; i < limit; i++ {
		if isEmptyRow(rows[i]) {
			continue
		}
		if s := scoreHeaderRow(rows[i]); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

func scoreHeaderRow(row []string) int {
	nonEmpty := 0
	distinct := make(map[string]struct{}, len(row))
	present := make(map[string]struct{}, len(row))
	score := 0
	longCell := false
	for _, c := range row {
		if c == "" {
			continue
		}
		nonEmpty++
		distinct[c] = struct{}{}
		present[normalizeTitle(c)] = struct{}{}
		if utf8.RuneCountInString(c) > longCellRunes {
			longCell = true
		}
		for _, kw := range headerKeywords {
			if strings.Contains(c, kw) {
				score += keywordBonus
				break
			}
		}
	}
	score += 2*nonEmpty + len(distinct)

	for _, set := range strongHeaderSets {
		all := true
		for _, name := range set {
			if _, ok := present[name]; !ok {
				all = false
				break
			}
		}
		if all {
			score += strongHeaderBonus
		}
	}
	if first := firstNonEmpty(row); first != "" && isNumeric(first) {
		score -= numericPenalty
	}
	if longCell {
		score -= longCellPenalty
	}
	return score
}

// IsSubHeaderRow reports whether row looks like the second line of a
// two-line header: short non-numeric cells, mostly scoring tokens.
func IsSubHeaderRow(row []string) bool {
	nonEmpty, hits := 0, 0
	for _, c := range row {
		if c == "" {
			continue
		}
		nonEmpty++
		if isNumeric(c) || utf8.RuneCountInString(c) > 8 {
			return false
		}
		if _, ok := subHeaderTokens[normalizeTitle(c)]; ok {
			hits++
		}
	}
	return nonEmpty > 0 && hits*2 >= nonEmpty
}

func normalizeTitle(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, " ", "")
	return strings.TrimSpace(s)
}

func firstNonEmpty(row []string) string {
	for _, c := range row {
		if c != "" {
			return c
		}
	}
	return ""
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}
