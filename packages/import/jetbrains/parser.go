package jetbrains

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const (
	requestSeparator = "###"
	nameAnnotation   = "@name"
)

type File struct {
	Path      string
	Variables []*Variable
	Requests  []*Request
}

type Variable struct {
	Name  string
	Value string
	Line  int
}

type Header struct {
	Key   string
	Value string
	Line  int
}

type Request struct {
	Name    string
	Method  string
	URL     string
	Headers []*Header
	// Body is empty when the request has none
	Body string
	Line int
}

type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// section states
type state int

const (
	statePreamble state = iota
	stateHeaders
	stateBody
)

type parser struct {
	file    string
	out     *File
	state   state
	name    string
	current *Request
	body    []string

	// inside a multi-line "> {% ... %}" block
	inHandler bool
}

func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(string(data), path)
}

func Parse(input, filename string) (*File, error) {
	p := &parser{file: filename, out: &File{Path: filename}}

	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if err := p.line(strings.TrimRight(scanner.Text(), "\r"), line); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	p.flush()
	return p.out, nil
}

func (p *parser) errorf(line int, format string, args ...any) error {
	return &ParseError{File: p.file, Line: line, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) line(text string, n int) error {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, requestSeparator) {
		p.flush()
		p.name = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		return nil
	}

	// Body lines are taken as-is, except comments, response handlers and
	// response references
	if p.state == stateBody {
		switch {
		case p.inHandler:
			p.inHandler = !strings.Contains(trimmed, "%}")
		case strings.HasPrefix(trimmed, ">"):
			p.inHandler = strings.Contains(trimmed, "{%") && !strings.Contains(trimmed, "%}")
		case strings.HasPrefix(trimmed, "<>"), isComment(trimmed):
		default:
			p.body = append(p.body, text)
		}
		return nil
	}

	if name, ok := parseNameAnnotation(trimmed); ok {
		p.name = name
		return nil
	}
	if isComment(trimmed) {
		return nil
	}

	switch p.state {
	case statePreamble:
		if trimmed == "" {
			return nil
		}
		if strings.HasPrefix(trimmed, "@") {
			v, err := parseVariable(trimmed)
			if err != nil {
				return p.errorf(n, "%v", err)
			}
			v.Line = n
			p.out.Variables = append(p.out.Variables, v)
			return nil
		}
		p.current = parseRequestLine(trimmed)
		p.current.Name = p.name
		p.current.Line = n
		p.state = stateHeaders

	case stateHeaders:
		if trimmed == "" {
			p.state = stateBody
			return nil
		}
		// Indented ?/& lines continue the request target
		if len(p.current.Headers) == 0 && text != trimmed &&
			(strings.HasPrefix(trimmed, "?") || strings.HasPrefix(trimmed, "&")) {
			p.current.URL += trimmed
			return nil
		}
		key, value, ok := strings.Cut(trimmed, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return p.errorf(n, "expected header, got %q", trimmed)
		}
		p.current.Headers = append(p.current.Headers, &Header{
			Key:   key,
			Value: strings.TrimSpace(value),
			Line:  n,
		})
	}
	return nil
}

// flush closes the current section.
func (p *parser) flush() {
	if p.current != nil {
		p.current.Body = strings.TrimSpace(strings.Join(p.body, "\n"))
		p.out.Requests = append(p.out.Requests, p.current)
	}
	p.current = nil
	p.body = nil
	p.name = ""
	p.inHandler = false
	p.state = statePreamble
}

func isComment(line string) bool {
	return strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//")
}

// parseNameAnnotation matches "# @name x", "// @name x" and "# @name=x".
func parseNameAnnotation(line string) (string, bool) {
	var rest string
	switch {
	case strings.HasPrefix(line, "#"):
		rest = line[1:]
	case strings.HasPrefix(line, "//"):
		rest = line[2:]
	default:
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, nameAnnotation) {
		return "", false
	}
	rest = rest[len(nameAnnotation):]
	if rest == "" || (rest[0] != ' ' && rest[0] != '=' && rest[0] != '\t') {
		return "", false
	}
	name := strings.TrimSpace(rest[1:])
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0], true
	}
	return "", false
}

// parseVariable parses "@name = value".
func parseVariable(line string) (*Variable, error) {
	name, value, ok := strings.Cut(line[1:], "=")
	name = strings.TrimSpace(name)
	if !ok || !isIdentifier(name) {
		return nil, fmt.Errorf("invalid variable %q", line)
	}
	return &Variable{Name: name, Value: strings.TrimSpace(value)}, nil
}

func isIdentifier(s string) bool {
	if s == "" || !isLetter(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		ch := s[i]
		if !isLetter(ch) && !isDigit(ch) && ch != '_' && ch != '-' && ch != '.' {
			return false
		}
	}
	return true
}

// parseRequestLine parses "METHOD target [HTTP/x.y]". A bare target is a GET.
func parseRequestLine(line string) *Request {
	fields := strings.Fields(line)
	req := &Request{Method: "GET"}
	if len(fields) > 1 && isHTTPMethod(fields[0]) {
		req.Method = fields[0]
		fields = fields[1:]
	}
	if n := len(fields); n > 1 && strings.HasPrefix(fields[n-1], "HTTP/") {
		fields = fields[:n-1]
	}
	req.URL = strings.Join(fields, " ")
	return req
}

func isLetter(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isHTTPMethod(s string) bool {
	switch s {
	case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS", "TRACE", "CONNECT":
		return true
	}
	return false
}
