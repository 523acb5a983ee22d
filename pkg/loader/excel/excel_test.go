package excel

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/loader"

	"github.com/xuri/excelize/v2"
)

func TestDetectHeaderRow(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
		want int
	}{
		{
			name: "FirstRowHeader",
			rows: [][]string{
				{"名称", "数量", "备注"},
				{"叉车", "3", "仓库"},
			},
			want: 0,
		},
		{
			name: "TitleAboveHeader",
			rows: [][]string{
				{"2024年度安全风险辨识清单"},
				{"编制单位：安全部", "", "日期：2024-01-01"},
				{"序号", "风险单元", "作业活动", "危险发生的触发因素和过程描述", "可能导致的后果"},
				{"1", "办公场所", "办公设备设施使用", "使用办公电器设备，电源线破损裸露。", "触电"},
			},
			want: 2,
		},
		{
			name: "LongTextRowPenalised",
			rows: [][]string{
				{"说明：本表用于记录各单位在日常生产经营活动中辨识出的全部安全风险及其管控措施，请逐项填写并按时更新", "", ""},
				{"区域", "设备", "负责人"},
				{"一号车间", "冲床", "张三"},
			},
			want: 1,
		},
		{
			name: "SkipsLeadingEmptyRows",
			rows: [][]string{
				{},
				{"", ""},
				{"项目", "内容"},
				{"a", "b"},
			},
			want: 2,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectHeaderRow(tc.rows); got != tc.want {
				t.Fatalf("DetectHeaderRow() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestIsSubHeaderRow(t *testing.T) {
	tests := []struct {
		name string
		row  []string
		want bool
	}{
		{"LEC", []string{"", "", "L", "E", "C", "D"}, true},
		{"ChineseTokens", []string{"", "可能性", "严重性", "风险值"}, true},
		{"DataRow", []string{"1", "办公场所", "触电"}, false},
		{"ShortDataWithoutTokens", []string{"叉车", "仓库"}, false},
		{"Empty", []string{"", ""}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsSubHeaderRow(tc.row); got != tc.want {
				t.Fatalf("IsSubHeaderRow(%v) = %v, want %v", tc.row, got, tc.want)
			}
		})
	}
}

func TestBuildSheet_SingleRowUsesColumnNames(t *testing.T) {
	sheet, ok := BuildSheet("Sheet1", [][]string{{"叉车", "", "仓库"}})
	if !ok {
		t.Fatal("expected sheet")
	}
	want := []string{"Column1", "Column2", "Column3"}
	if strings.Join(sheet.Headers, ",") != strings.Join(want, ",") {
		t.Fatalf("expected headers %v, got %v", want, sheet.Headers)
	}
	if len(sheet.Rows) != 1 || sheet.Rows[0].Text("Column3") != "仓库" {
		t.Fatalf("unexpected rows %+v", sheet.Rows)
	}
	if _, ok := sheet.Rows[0].Get("Column2"); ok {
		t.Fatal("empty cells must be omitted")
	}
}

func TestBuildSheet_EmptySheet(t *testing.T) {
	if _, ok := BuildSheet("empty", [][]string{{}, {"", " "}}); ok {
		t.Fatal("expected empty sheet to be skipped")
	}
}

func TestBuildSheet_DuplicateAndBlankHeaders(t *testing.T) {
	sheet, ok := BuildSheet("s", [][]string{
		{"序号", "名称", "", "名称"},
		{"1", "阀门", "", "泵"},
	})
	if !ok {
		t.Fatal("expected sheet")
	}
	want := "序号,名称,Column3,名称_2"
	if got := strings.Join(sheet.Headers, ","); got != want {
		t.Fatalf("expected headers %s, got %s", want, got)
	}
	if len(sheet.Rows) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sheet.Rows))
	}
	rec := sheet.Rows[0]
	if rec.Text("名称") != "阀门" || rec.Text("名称_2") != "泵" || rec.Len() != 3 {
		t.Fatalf("unexpected record %v", rec.Map())
	}
}

func TestBuildSheet_DenseDataRowBeatsSparseHeader(t *testing.T) {
	// a sparse title line without header keywords loses to a full row
	sheet, ok := BuildSheet("s", [][]string{
		{"名称", "", "名称"},
		{"a", "b", "c"},
		{"d", "e", "f"},
	})
	if !ok {
		t.Fatal("expected sheet")
	}
	if got := strings.Join(sheet.Headers, ","); got != "a,b,c" {
		t.Fatalf("expected headers a,b,c, got %s", got)
	}
	if len(sheet.Rows) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sheet.Rows))
	}
}

func TestParser_RiskRegisterWorkbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"安全风险辨识清单"},
		{"序号", "风险单元", "作业活动", "危险发生的触发因素和过程描述", "可能导致的后果", "风险等级"},
		{"", "", "", "", "", "等级"},
		{1, "办公场所", "办公设备设施使用", "使用办公电器设备，电源线破损裸露。", "触电", "蓝"},
		{},
		{2, "办公场所", "办公设备设施使用", "下班后未关闭电源，电器设施过热。", "火灾", "蓝"},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	doc, err := NewParser().Parse(context.Background(), loader.File{Name: "risk.xlsx", Type: common.FileTypeExcel}, buf.Bytes())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.SheetCount != 1 {
		t.Fatalf("expected 1 sheet, got %d", doc.SheetCount)
	}
	sheet := doc.Sheets[0]
	if sheet.Headers[1] != "风险单元" {
		t.Fatalf("expected detected header row, got %v", sheet.Headers)
	}
	if len(sheet.Rows) != 2 {
		t.Fatalf("expected 2 data rows, got %d", len(sheet.Rows))
	}
	if got := sheet.Rows[1].Text("可能导致的后果"); got != "火灾" {
		t.Fatalf("expected 火灾, got %q", got)
	}

	for _, want := range []string{
		"[Sheet: Sheet1]\n",
		"表头: 序号, 风险单元, 作业活动, 危险发生的触发因素和过程描述, 可能导致的后果, 风险等级\n",
		"数据行数: 2\n\n",
		"[行1] 序号: 1 | 风险单元: 办公场所 | 作业活动: 办公设备设施使用 | 危险发生的触发因素和过程描述: 使用办公电器设备，电源线破损裸露。 | 可能导致的后果: 触电 | 风险等级: 蓝\n\n",
	} {
		if !strings.Contains(doc.Text, want) {
			t.Fatalf("expected text to contain %q, got:\n%s", want, doc.Text)
		}
	}
}

func TestSheetText_TruncatesRows(t *testing.T) {
	s := loader.Sheet{Name: "big", Headers: []string{"n"}}
	for i := 0; i < maxTextRows+5; i++ {
		s.Rows = append(s.Rows, common.NewProperties("n", fmt.Sprint(i)))
	}
	text := SheetText(s)
	if !strings.HasSuffix(text, "... 还有 5 行数据 ...\n") {
		t.Fatalf("expected truncation marker, got tail %q", text[len(text)-40:])
	}
	if strings.Contains(text, fmt.Sprintf("[行%d]", maxTextRows+1)) {
		t.Fatal("rows beyond the cap must not be rendered")
	}
}
