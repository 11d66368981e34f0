// Package docx describes HTTP endpoints and serves the description as JSON.
package docx

import (
	"reflect"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HTTPMethod string

const (
	GET    HTTPMethod = "GET"
	POST   HTTPMethod = "POST"
	DELETE HTTPMethod = "DELETE"
)

type Authentication string

const (
	None   Authentication = "none"
	Bearer Authentication = "bearer"
)

// Param is a path, query or form parameter
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// Schema is the reflected shape of a DTO
type Schema struct {
	Type   string        `json:"type"`
	Fields []SchemaField `json:"fields,omitempty"`
}

type SchemaField struct {
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Required bool          `json:"required"`
	Fields   []SchemaField `json:"fields,omitempty"`
}

// Endpoint documents one route
type Endpoint struct {
	Path        string         `json:"path"`
	Method      HTTPMethod     `json:"method"`
	Summary     string         `json:"summary,omitempty"`
	Auth        Authentication `json:"auth"`
	PathParams  []Param        `json:"pathParams,omitempty"`
	QueryParams []Param        `json:"queryParams,omitempty"`
	FormFields  []Param        `json:"formFields,omitempty"`

	ResponseSchema *Schema `json:"responseSchema,omitempty"`
	Curl           string  `json:"curl,omitempty"`
}

func NewEndpoint(path string, method HTTPMethod) *Endpoint {
	return &Endpoint{Path: path, Method: method, Auth: None}
}

func (e *Endpoint) WithSummary(summary string) *Endpoint {
	e.Summary = summary
	return e
}

func (e *Endpoint) WithAuth(auth Authentication) *Endpoint {
	e.Auth = auth
	return e
}

func (e *Endpoint) WithPathParam(name, paramType, description string) *Endpoint {
	e.PathParams = append(e.PathParams, Param{Name: name, Type: paramType, Description: description, Required: true})
	return e
}

func (e *Endpoint) WithQueryParam(name, paramType, description string) *Endpoint {
	e.QueryParams = append(e.QueryParams, Param{Name: name, Type: paramType, Description: description})
	return e
}

// WithFormField documents a multipart field; type "file" marks uploads
func (e *Endpoint) WithFormField(name, paramType, description string, required bool) *Endpoint {
	e.FormFields = append(e.FormFields, Param{Name: name, Type: paramType, Description: description, Required: required})
	return e
}

func (e *Endpoint) WithResponseDTO(dto any) *Endpoint {
	s := extractSchema(reflect.TypeOf(dto))
	e.ResponseSchema = &s
	return e
}

// RouterDoc groups the endpoints under a base path
type RouterDoc struct {
	BasePath  string      `json:"basePath"`
	Endpoints []*Endpoint `json:"endpoints"`
}

func NewRouterDoc(basePath string) *RouterDoc {
	return &RouterDoc{BasePath: basePath, Endpoints: []*Endpoint{}}
}

func (r *RouterDoc) AddEndpoint(endpoint *Endpoint) *RouterDoc {
	r.Endpoints = append(r.Endpoints, endpoint)
	return r
}

// RegisterWithFiber serves the documentation at path. Curl examples are
// rendered against the request's own base URL.
func (r *RouterDoc) RegisterWithFiber(app fiber.Router, path string) {
	app.Get(path, func(c *fiber.Ctx) error {
		gen := NewCurlGenerator(c.BaseURL())
		out := &RouterDoc{BasePath: r.BasePath, Endpoints: make([]*Endpoint, len(r.Endpoints))}
		for i, e := range r.Endpoints {
			cp := *e
			cp.Curl = gen.GenerateCurl(e)
			out.Endpoints[i] = &cp
		}
		return c.JSON(out)
	})
}

func extractSchema(t reflect.Type) Schema {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	schema := Schema{Type: t.Name()}
	if t.Kind() == reflect.Slice {
		schema.Type = "[]" + t.Elem().Name()
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return schema
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = field.Name
		}
		sf := SchemaField{
			Name:     name,
			Type:     field.Type.String(),
			Required: !strings.Contains(opts, "omitempty"),
		}
		ft := field.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft.PkgPath() != "time" {
			sf.Fields = extractSchema(ft).Fields
		}
		schema.Fields = append(schema.Fields, sf)
	}
	return schema
}
