package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ParamMissingError is returned when a required parameter root is absent
type ParamMissingError struct {
	Param string
}

func (e *ParamMissingError) Error() string {
	return "param is missing or the value is empty: " + e.Param
}

// IsParamMissing reports whether err is a ParamMissingError
func IsParamMissing(err error) bool {
	var target *ParamMissingError
	return errors.As(err, &target)
}

// Parser handles parsing of HTTP request bodies
type Parser struct {
	maxBodySize int64 // Maximum size for request bodies (in bytes)
}

// NewParser creates a new request parser with default settings
func NewParser() *Parser {
	return &Parser{
		maxBodySize: 10 << 20, // 10MB default
	}
}

// NewParserWithMaxSize creates a parser with a custom max body size
func NewParserWithMaxSize(maxBytes int64) *Parser {
	return &Parser{
		maxBodySize: maxBytes,
	}
}

// Parse reads the request body into a Body. JSON objects, url-encoded forms
// and multipart forms are accepted; bracketed form keys such as
// "app[title]" become nested values.
func (p *Parser) Parse(w http.ResponseWriter, r *http.Request) (*Body, error) {
	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}

	switch {
	case mediaType == "application/json", mediaType == "":
		return p.parseJSON(w, r)
	case mediaType == "application/x-www-form-urlencoded":
		return p.parseForm(w, r)
	case mediaType == "multipart/form-data":
		return p.parseMultipart(w, r)
	default:
		return nil, fmt.Errorf("unsupported content type: %s", mediaType)
	}
}

func (p *Parser) parseJSON(w http.ResponseWriter, r *http.Request) (*Body, error) {
	body := newBody()
	if r.Body == nil {
		return body, nil
	}

	// Limit body size to prevent DoS attacks
	r.Body = http.MaxBytesReader(w, r.Body, p.maxBodySize)
	defer r.Body.Close()

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return body, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&body.values); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("request body contains multiple JSON objects")
	}
	if body.values == nil {
		body.values = map[string]interface{}{}
	}
	return body, nil
}

func (p *Parser) parseForm(w http.ResponseWriter, r *http.Request) (*Body, error) {
	r.Body = http.MaxBytesReader(w, r.Body, p.maxBodySize)
	defer r.Body.Close()

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form data: %w", err)
	}

	body := newBody()
	body.addValues(r.PostForm)
	return body, nil
}

func (p *Parser) parseMultipart(w http.ResponseWriter, r *http.Request) (*Body, error) {
	r.Body = http.MaxBytesReader(w, r.Body, p.maxBodySize)

	if err := r.ParseMultipartForm(p.maxBodySize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	body := newBody()
	body.addValues(r.MultipartForm.Value)
	for key, headers := range r.MultipartForm.File {
		if len(headers) > 0 {
			setNested(body.values, splitKey(key), headers[0])
		}
	}
	return body, nil
}

// Body is a parsed request body
type Body struct {
	values map[string]interface{}
}

func newBody() *Body {
	return &Body{values: map[string]interface{}{}}
}

func (b *Body) addValues(values url.Values) {
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		setNested(b.values, splitKey(key), vals[len(vals)-1])
	}
}

// Root returns the top-level parameters
func (b *Body) Root() *Params {
	return &Params{values: b.values}
}

// Require returns the nested parameters under name, failing when they are
// absent or empty.
func (b *Body) Require(name string) (*Params, error) {
	nested, ok := b.values[name].(map[string]interface{})
	if !ok || len(nested) == 0 {
		return nil, &ParamMissingError{Param: name}
	}
	return &Params{values: nested}, nil
}

// Optional returns the nested parameters under name, or empty parameters
func (b *Body) Optional(name string) *Params {
	nested, _ := b.values[name].(map[string]interface{})
	return &Params{values: nested}
}

// Params is a set of permitted-by-lookup parameters. Only the keys a
// handler asks for are ever read.
type Params struct {
	values map[string]interface{}
}

// NewParams wraps a plain map, mainly for tests
func NewParams(values map[string]interface{}) *Params {
	return &Params{values: values}
}

// Empty reports whether there are no parameters at all
func (p *Params) Empty() bool {
	return len(p.values) == 0
}

// Has reports whether key was sent, even with an empty value
func (p *Params) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// String returns key as a string. Missing and null values are "".
func (p *Params) String(key string) string {
	switch v := p.values[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Int returns key as an integer. Missing, null and blank values are nil.
// Values that are not integers are reported as 0 so that range checks
// reject them.
func (p *Params) Int(key string) *int {
	var n int
	switch v := p.values[key].(type) {
	case nil:
		return nil
	case json.Number:
		i, err := strconv.Atoi(v.String())
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return &n
			}
			i = int(f)
		}
		n = i
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		i, err := strconv.Atoi(s)
		if err == nil {
			n = i
		}
	}
	return &n
}

// File returns the uploaded file sent as key, or nil
func (p *Params) File(key string) *multipart.FileHeader {
	fh, _ := p.values[key].(*multipart.FileHeader)
	return fh
}

// splitKey turns "app[title]" into ["app", "title"]
func splitKey(key string) []string {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return []string{key}
	}

	parts := []string{key[:open]}
	rest := key[open:]
	for len(rest) > 0 && rest[0] == '[' {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			break
		}
		parts = append(parts, rest[1:end])
		rest = rest[end+1:]
	}
	return parts
}

func setNested(m map[string]interface{}, path []string, value interface{}) {
	for i, part := range path {
		if i == len(path)-1 || path[i+1] == "" {
			m[part] = value
			return
		}
		next, ok := m[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			m[part] = next
		}
		m = next
	}
}
