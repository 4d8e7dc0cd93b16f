package guard

import (
	"path"
	"testing"
)

func TestFastPathClean(t *testing.T) {
	tests := []string{
		// Clean paths
		"/",
		"/api/contact",
		"/functions/v1/contact-form",
		"/newsletter/subscribe",
		"/file.txt",
		"/api/v1.0/data",
		"/...",
		"/api/.../data",

		// Dirty paths
		"",
		"//",
		"/api/",
		"/api//contact",
		"/api/./contact",
		"/api/../contact",
		"/api/contact/.",
		"/api/contact/..",
		"/.",
		"/..",
		"//a/b",
		"/a/b/",

		// Non-rooted paths are rooted first
		"api/contact",
		"./api",
		"../api",
		".",
		"..",
	}

	for _, p := range tests {
		want := path.Clean("/" + p)
		got := fastPathClean(p)
		if got != want {
			t.Errorf("fastPathClean(%q) = %q, want %q", p, got, want)
		}
	}
}

func TestMatchPath(t *testing.T) {
	tests := []struct {
		path    string
		pattern string
		want    bool
	}{
		{"/api/contact", "/api/contact", true},
		{"/api/contact", "/api/contacts", false},
		{"/api/contact", "/api/*", true},
		{"/api", "/api/*", true},
		{"/apiary", "/api/*", false},
		{"/apiary", "/api*", true},
		{"/anything", "*", true},
		{"/", "/", true},
		{"/newsletter", "/api/*", false},
	}

	for _, tt := range tests {
		if got := matchPath(tt.path, tt.pattern); got != tt.want {
			t.Errorf("matchPath(%q, %q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
		}
	}
}

func BenchmarkFastPathClean_Realistic(b *testing.B) {
	paths := []string{
		"/api/contact",
		"/functions/v1/contact-form",
		"/newsletter/subscribe",
		"/admin/projects/42",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, p := range paths {
			_ = fastPathClean(p)
		}
	}
}

func BenchmarkFastPathClean_Dirty(b *testing.B) {
	paths := []string{
		"//api/contact",
		"/api/../v1",
		"/api/./v1",
		"/api/v1/",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, p := range paths {
			_ = fastPathClean(p)
		}
	}
}
