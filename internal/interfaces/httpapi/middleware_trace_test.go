package httpapi

import "testing"

func TestShouldTraceRequest_HealthPaths(t *testing.T) {
	paths := []string{"/healthz", "/health", "/livez", "/readyz", "/metrics", " /healthz "}
	for _, path := range paths {
		if shouldTraceRequest(path) {
			t.Fatalf("expected no tracing for path %q", path)
		}
	}
}

func TestShouldTraceRequest_NonHealthPaths(t *testing.T) {
	paths := []string{"/v1/judging", "/v1/session", "/", "/docs"}
	for _, path := range paths {
		if !shouldTraceRequest(path) {
			t.Fatalf("expected tracing for path %q", path)
		}
	}
}

func TestNormalizeIP(t *testing.T) {
	tests := map[string]string{
		"10.0.0.1:5050":         "10.0.0.1",
		"203.0.113.9, 10.0.0.1": "203.0.113.9",
		"[2001:db8::1]:443":     "2001:db8::1",
		"not-an-ip":             "",
		"":                      "",
	}
	for in, want := range tests {
		if got := normalizeIP(in); got != want {
			t.Fatalf("normalizeIP(%q)=%q want=%q", in, got, want)
		}
	}
}
