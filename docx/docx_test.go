package docx

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

type extractResponse struct {
	Text   string `json:"text"`
	Record *struct {
		Confidence float64 `json:"confidence"`
	} `json:"record,omitempty"`
	internal int
}

func TestSchemaUsesJSONNames(t *testing.T) {
	s := extractSchema(reflect.TypeOf(extractResponse{}))
	if len(s.Fields) != 2 || s.Fields[0].Name != "text" || !s.Fields[0].Required {
		t.Fatalf("unexpected fields %+v", s.Fields)
	}
	if s.Fields[1].Required || len(s.Fields[1].Fields) != 1 {
		t.Fatalf("unexpected nested field %+v", s.Fields[1])
	}
}

func TestCurl(t *testing.T) {
	e := NewEndpoint("/v1/runs/:id", GET).WithAuth(Bearer).WithPathParam("id", "string", "run id")
	got := NewCurlGenerator("http://localhost:8080/").GenerateCurl(e)
	want := `curl "http://localhost:8080/v1/runs/<ID>" -H "Authorization: Bearer <TOKEN>"`
	if got != want {
		t.Fatalf("got %s\nwant %s", got, want)
	}

	up := NewEndpoint("/v1/extract", POST).WithFormField("image", "file", "", true).WithFormField("prompt", "string", "", false)
	if c := NewCurlGenerator("http://h").GenerateCurl(up); !strings.Contains(c, `-X POST`) || !strings.Contains(c, `-F "image=@<FILE>"`) || strings.Contains(c, "prompt") {
		t.Fatalf("unexpected curl %s", c)
	}
}

func TestRegisterWithFiber(t *testing.T) {
	app := fiber.New()
	NewRouterDoc("/v1").AddEndpoint(NewEndpoint("/healthz", GET)).RegisterWithFiber(app, "/docs")

	resp, err := app.Test(httptest.NewRequest("GET", "/docs", nil))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	var doc RouterDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Endpoints) != 1 || !strings.HasPrefix(doc.Endpoints[0].Curl, "curl \"http://example.com/healthz") {
		t.Fatalf("unexpected doc %s", body)
	}
}
