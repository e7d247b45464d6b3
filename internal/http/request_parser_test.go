package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		allowEmpty bool
		wantErr    bool
	}{
		{name: "valid", body: `{"session":"s1","path":["US"]}`},
		{name: "unknown field", body: `{"session":"s1","nope":1}`, wantErr: true},
		{name: "trailing object", body: `{"session":"s1"}{"session":"s2"}`, wantErr: true},
		{name: "malformed", body: `{"session":`, wantErr: true},
		{name: "empty rejected", body: ``, wantErr: true},
		{name: "empty allowed", body: ``, allowEmpty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst percentageRequest
			err := DecodeJSON(req, &dst, tt.allowEmpty)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.name == "valid" && (dst.Session != "s1" || len(dst.Path) != 1) {
				t.Errorf("decoded %+v", dst)
			}
		})
	}
}

func TestParseSession(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		want    string
		wantErr bool
	}{
		{name: "missing", query: url.Values{}, want: ""},
		{name: "trimmed", query: url.Values{"session": {"  alice \x00"}}, want: "alice"},
		{name: "too long", query: url.Values{"session": {strings.Repeat("x", 129)}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSession(tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanPath(t *testing.T) {
	got := cleanPath([]string{"US\x07", "", " NY "})
	want := []string{"US", "", " NY "}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRequireJSON(t *testing.T) {
	tests := []struct {
		ct   string
		pass bool
	}{
		{"", true},
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"application/x-www-form-urlencoded", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if tt.ct != "" {
			req.Header.Set("Content-Type", tt.ct)
		}
		if got := RequireJSON(req) == nil; got != tt.pass {
			t.Errorf("%q: pass = %v, want %v", tt.ct, got, tt.pass)
		}
	}
}
