package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type payloadReq struct {
	Hash   string `json:"hash" binding:"required,sha256hex"`
	Wallet string `json:"wallet" binding:"omitempty,evmaddress"`
}

type wrappedReq struct {
	Payload payloadReq `json:"payload" binding:"required"`
}

func bindBody(t *testing.T, body string, dst any) map[string]string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return Bind(c, dst)
}

func TestBindCustomTags(t *testing.T) {
	Setup()
	good := strings.Repeat("ab", 32)

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"valid", `{"payload":{"hash":"` + good + `","wallet":"0x52908400098527886E0F7030069857D2E4169EE7"}}`, ""},
		{"uppercase hash", `{"payload":{"hash":"` + strings.ToUpper(good) + `"}}`, "payload.hash"},
		{"short hash", `{"payload":{"hash":"abcd"}}`, "payload.hash"},
		{"bad wallet", `{"payload":{"hash":"` + good + `","wallet":"0x1234"}}`, "payload.wallet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req wrappedReq
			fields := bindBody(t, tt.body, &req)
			if tt.wantField == "" {
				if fields != nil {
					t.Fatalf("unexpected errors: %v", fields)
				}
				return
			}
			msg, ok := fields[tt.wantField]
			if !ok {
				t.Fatalf("missing error for %s: %v", tt.wantField, fields)
			}
			if msg == "" {
				t.Fatalf("empty message for %s", tt.wantField)
			}
		})
	}
}

func TestBindSyntaxErrorReportsDetail(t *testing.T) {
	Setup()
	var req wrappedReq
	fields := bindBody(t, `{"payload":`, &req)
	if _, ok := fields["detail"]; !ok {
		t.Fatalf("want detail key, got %v", fields)
	}
}
