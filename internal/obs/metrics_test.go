package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                               "/",
		"/metrics":                       "/metrics",
		"/v1/profiles":                   "/v1/profiles",
		"/v1/profiles/sub-123":           "/v1/profiles/:id",
		"/v1/profiles?limit=10":          "/v1/profiles",
		"/v1/users/tier":                 "/v1/users/tier",
		"/v1/triggers/pre-signup":        "/v1/triggers/pre-signup",
		"/v1/triggers/post-confirmation": "/v1/triggers/post-confirmation",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
