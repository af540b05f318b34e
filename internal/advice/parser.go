// Package advice 负责把模型返回的 HTML 内容解析为结构化的建议分区。
//
// 支持三种标记方式，按优先级：
//   - v1: <section data-advice="self_care"><h3>Title</h3>...</section>
//   - 旧版可折叠块: <div class="collapsible-section">，标题取自 .collapsible-header
//   - 旧版标题: h2-h4 标题文本可以归类到某个分区时，其后的兄弟节点归入该分区
//
// 没有任何标记的内容解析为普通消息。
package advice

import (
	"bytes"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"medai-go/internal/model"
)

// 解析结果中 Schema 字段的取值。
const (
	SchemaV1          = model.AdviceSchemaVersion
	SchemaCollapsible = "legacy-collapsible"
	SchemaHeadings    = "legacy-headings"
	SchemaPlain       = "plain"
)

const adviceAttr = "data-advice"

// Parse 解析助手回复。解析失败时降级为普通消息，不返回错误。
func Parse(content string) model.StructuredResponse {
	content = stripCodeFence(content)
	nodes, err := html.ParseFragment(strings.NewReader(content), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return plain(content)
	}
	nodes = unwrap(nodes)

	p := &sectionParser{}
	for _, n := range nodes {
		p.consume(n)
	}
	if len(p.sections) == 0 {
		return plain(content)
	}

	resp := model.StructuredResponse{
		Schema: p.schema,
		Intro:  Sanitize(p.intro.String()),
		Outro:  Sanitize(p.outro.String()),
	}
	for _, s := range p.sections {
		resp.Sections = append(resp.Sections, model.Section{
			Kind:  s.kind,
			Title: s.title,
			Body:  Sanitize(s.body.String()),
		})
	}
	return resp
}

func plain(content string) model.StructuredResponse {
	return model.StructuredResponse{Schema: SchemaPlain, Intro: Sanitize(content)}
}

type pendingSection struct {
	kind  model.SectionKind
	title string
	body  bytes.Buffer
}

type sectionParser struct {
	schema   string
	intro    bytes.Buffer
	outro    bytes.Buffer
	sections []*pendingSection
	// open 非空表示当前处于标题模式，后续节点追加到该分区。
	open *pendingSection
	// openLevel 是 open 分区标题的级别，同级或更高级的标题结束该分区
	openLevel int
}

func (p *sectionParser) consume(n *html.Node) {
	if kind, ok := markerKind(n); ok {
		p.open = nil
		title, body := extractV1(n)
		if title == "" {
			title = kind.DefaultTitle()
		}
		p.add(kind, title, body, SchemaV1)
		return
	}
	if isCollapsible(n) {
		title, body := extractCollapsible(n)
		if kind, ok := Classify(title); ok {
			p.open = nil
			p.add(kind, title, body, SchemaCollapsible)
			return
		}
	}
	if isHeading(n) {
		title := textContent(n)
		if kind, ok := Classify(title); ok {
			p.open = p.add(kind, title, "", SchemaHeadings)
			p.openLevel = headingLevel(n)
			return
		}
		if p.open != nil && headingLevel(n) <= p.openLevel {
			p.open = nil
		}
	}

	switch {
	case p.open != nil:
		render(&p.open.body, n)
	case len(p.sections) == 0:
		render(&p.intro, n)
	default:
		render(&p.outro, n)
	}
}

// add 追加一个分区。同类分区重复出现时合并到第一次出现的位置。
func (p *sectionParser) add(kind model.SectionKind, title, body, schema string) *pendingSection {
	if p.schema == "" || schema == SchemaV1 {
		p.schema = schema
	}
	for _, s := range p.sections {
		if s.kind == kind {
			s.body.WriteString(body)
			return s
		}
	}
	s := &pendingSection{kind: kind, title: strings.TrimSpace(title)}
	s.body.WriteString(body)
	p.sections = append(p.sections, s)
	return s
}

func markerKind(n *html.Node) (model.SectionKind, bool) {
	if n.Type != html.ElementNode {
		return "", false
	}
	v, ok := attr(n, adviceAttr)
	if !ok {
		return "", false
	}
	kind := model.SectionKind(strings.TrimSpace(strings.ToLower(v)))
	return kind, kind.Valid()
}

// extractV1 取第一个标题子节点作为标题，其余子节点作为正文。
func extractV1(n *html.Node) (string, string) {
	var title string
	var body bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title == "" && isHeading(c) {
			title = textContent(c)
			continue
		}
		render(&body, c)
	}
	return title, body.String()
}

func isCollapsible(n *html.Node) bool {
	return n.Type == html.ElementNode && hasClass(n, "collapsible-section")
}

func extractCollapsible(n *html.Node) (string, string) {
	var title string
	if header := findByClass(n, "collapsible-header"); header != nil {
		title = headerTitle(header)
	}
	bodyNode := findByClass(n, "collapsible-body")
	if bodyNode == nil {
		bodyNode = findByClass(n, "collapsible-content")
	}
	var body bytes.Buffer
	if bodyNode != nil {
		for c := bodyNode.FirstChild; c != nil; c = c.NextSibling {
			render(&body, c)
		}
	}
	return title, body.String()
}

// headerTitle 读取标题文本，跳过展开图标。
func headerTitle(header *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "collapsible-icon") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(header)
	return cleanTitle(sb.String())
}

func isHeading(n *html.Node) bool {
	return n.Type == html.ElementNode && headingLevel(n) > 0
}

func headingLevel(n *html.Node) int {
	switch n.DataAtom {
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	}
	return 0
}

// unwrap 当整段内容被单个无标记的容器包裹时，下钻一层。
func unwrap(nodes []*html.Node) []*html.Node {
	var elems []*html.Node
	for _, n := range nodes {
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) == "" {
			continue
		}
		elems = append(elems, n)
	}
	if len(elems) != 1 {
		return nodes
	}
	root := elems[0]
	if root.Type != html.ElementNode || isCollapsible(root) {
		return nodes
	}
	if _, ok := attr(root, adviceAttr); ok {
		return nodes
	}
	switch root.DataAtom {
	case atom.Div, atom.Article, atom.Main:
	default:
		return nodes
	}
	var children []*html.Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	return children
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return content
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(trimmed), "```"))
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func findByClass(n *html.Node, class string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && hasClass(c, class) {
			return c
		}
		if found := findByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return cleanTitle(sb.String())
}

// cleanTitle 去掉标题前后的图标符号与多余空白，任何文字的字母和数字都保留。
func cleanTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimFunc(s, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '(' || r == ')')
	})
}

func render(buf *bytes.Buffer, n *html.Node) {
	_ = html.Render(buf, n)
}
