// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tool

import (
	"regexp"
	"strings"
)

// Doc 解析后的 Google 风格文档块
type Doc struct {
	Short    string
	Long     string
	Args     map[string]DocArg
	Returns  DocReturn
	Raises   []Raise
	Examples []string
}

// DocArg Args 段中的一项
type DocArg struct {
	Type        string
	Description string
}

// DocReturn Returns 段
type DocReturn struct {
	Type        string
	Description string
}

// Raise 声明的异常/错误
type Raise struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type docSection int

const (
	secDescription docSection = iota
	secArgs
	secReturns
	secRaises
	secExamples
	secUnknown
)

var sectionHeaders = map[string]docSection{
	"args":       secArgs,
	"arguments":  secArgs,
	"parameters": secArgs,
	"params":     secArgs,
	"returns":    secReturns,
	"return":     secReturns,
	"yields":     secReturns,
	"raises":     secRaises,
	"errors":     secRaises,
	"examples":   secExamples,
	"example":    secExamples,
	"note":       secUnknown,
	"notes":      secUnknown,
}

var argLine = regexp.MustCompile(`^\*{0,2}([A-Za-z_][A-Za-z0-9_]*)\s*(?:\(([^)]*)\))?\s*:\s*(.*)$`)

type docLine struct {
	indent int
	text   string
}

// ParseDoc 解析文档块；无法识别的内容归入描述，不会失败
func ParseDoc(doc string) Doc {
	d := Doc{Args: map[string]DocArg{}}
	sections := map[docSection][]docLine{}
	cur := secDescription
	for _, raw := range strings.Split(strings.ReplaceAll(doc, "\t", "    "), "\n") {
		text := strings.TrimSpace(raw)
		if strings.HasSuffix(text, ":") {
			if s, ok := sectionHeaders[strings.ToLower(strings.TrimSuffix(text, ":"))]; ok {
				cur = s
				continue
			}
		}
		indent := len(raw) - len(strings.TrimLeft(raw, " "))
		sections[cur] = append(sections[cur], docLine{indent: indent, text: text})
	}

	d.Short, d.Long = parseDescription(sections[secDescription])
	for _, e := range entries(sections[secArgs]) {
		if m := argLine.FindStringSubmatch(e); m != nil {
			d.Args[m[1]] = DocArg{Type: strings.TrimSpace(m[2]), Description: strings.TrimSpace(m[3])}
		}
	}
	if ret := strings.Join(entries(sections[secReturns]), " "); ret != "" {
		d.Returns = parseReturn(ret)
	}
	for _, e := range entries(sections[secRaises]) {
		name, desc, _ := strings.Cut(e, ":")
		d.Raises = append(d.Raises, Raise{Name: strings.TrimSpace(name), Description: strings.TrimSpace(desc)})
	}
	for _, l := range sections[secExamples] {
		if l.text != "" {
			d.Examples = append(d.Examples, l.text)
		}
	}
	return d
}

func parseDescription(lines []docLine) (short, long string) {
	var paras []string
	var buf []string
	flush := func() {
		if len(buf) > 0 {
			paras = append(paras, strings.Join(buf, " "))
			buf = nil
		}
	}
	for _, l := range lines {
		if l.text == "" {
			flush()
			continue
		}
		buf = append(buf, l.text)
	}
	flush()
	if len(paras) == 0 {
		return "", ""
	}
	return paras[0], strings.Join(paras[1:], "\n\n")
}

// entries 按缩进合并续行：与段内最小缩进对齐的行开启新条目
func entries(lines []docLine) []string {
	base := -1
	for _, l := range lines {
		if l.text != "" && (base < 0 || l.indent < base) {
			base = l.indent
		}
	}
	var out []string
	for _, l := range lines {
		if l.text == "" {
			continue
		}
		if l.indent <= base || len(out) == 0 {
			out = append(out, l.text)
			continue
		}
		out[len(out)-1] += " " + l.text
	}
	return out
}

// parseReturn 识别 "type: description"；冒号前（方括号外）含空格时视为纯描述
func parseReturn(s string) DocReturn {
	before, after, ok := strings.Cut(s, ":")
	if !ok {
		return DocReturn{Description: s}
	}
	depth := 0
	for _, r := range before {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ' ':
			if depth == 0 {
				return DocReturn{Description: s}
			}
		}
	}
	return DocReturn{Type: strings.TrimSpace(before), Description: strings.TrimSpace(after)}
}
