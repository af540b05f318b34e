package advice

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"medai-go/internal/model"
)

var policy = bluemonday.UGCPolicy()

// Sanitize 按 UGC 策略净化模型生成的 HTML，并去掉首尾空白。
func Sanitize(content string) string {
	return strings.TrimSpace(policy.Sanitize(content))
}

// Classify 根据标题文本判断所属分区。
func Classify(title string) (model.SectionKind, bool) {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "immediate"), strings.Contains(t, "emergency"), strings.Contains(t, "urgent"):
		return model.SectionImmediateCare, true
	case strings.Contains(t, "doctor"), strings.Contains(t, "medical attention"), strings.Contains(t, "professional help"):
		return model.SectionSeeDoctor, true
	case strings.Contains(t, "self-care"), strings.Contains(t, "self care"), strings.Contains(t, "home care"):
		return model.SectionSelfCare, true
	case strings.Contains(t, "cause"):
		return model.SectionPossibleCauses, true
	}
	return "", false
}

// PlainText 去掉所有标签，只保留文本。块级元素之间以换行分隔。
func PlainText(content string) string {
	z := html.NewTokenizer(strings.NewReader(content))
	var sb strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF 或畸形输入都直接返回已收集的文本
			return collapse(sb.String())
		case html.TextToken:
			sb.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if isBlock(atom.Lookup(name)) {
				sb.WriteByte('\n')
			}
		}
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Ul, atom.Ol, atom.Section,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Tr, atom.Blockquote:
		return true
	}
	return false
}

// collapse 合并每行内部的空白并去掉空行。
func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Truncate 按字符数截断文本，超出部分以 "..." 结尾。
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
