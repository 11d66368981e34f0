package docx

import (
	"fmt"
	"strings"
)

type CurlGenerator struct {
	BaseURL string
}

func NewCurlGenerator(baseURL string) *CurlGenerator {
	return &CurlGenerator{BaseURL: strings.TrimRight(baseURL, "/")}
}

// GenerateCurl renders an example invocation of endpoint
func (g *CurlGenerator) GenerateCurl(endpoint *Endpoint) string {
	var b strings.Builder
	b.WriteString("curl")
	if endpoint.Method != GET {
		fmt.Fprintf(&b, " -X %s", endpoint.Method)
	}

	path := endpoint.Path
	for _, p := range endpoint.PathParams {
		path = strings.ReplaceAll(path, ":"+p.Name, "<"+strings.ToUpper(p.Name)+">")
	}
	fmt.Fprintf(&b, " \"%s%s\"", g.BaseURL, path)

	if endpoint.Auth == Bearer {
		b.WriteString(" -H \"Authorization: Bearer <TOKEN>\"")
	}
	for _, f := range endpoint.FormFields {
		if f.Type == "file" {
			fmt.Fprintf(&b, " -F \"%s=@<FILE>\"", f.Name)
		} else if f.Required {
			fmt.Fprintf(&b, " -F \"%s=<%s>\"", f.Name, strings.ToUpper(f.Type))
		}
	}
	return b.String()
}
