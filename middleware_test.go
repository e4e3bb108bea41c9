package archivist

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want routeClass
	}{
		{"/", routePage},
		{"/objects/1700000000000/", routePage},
		{"/public/css/site.css", routeStatic},
		{"/sitemap.xml", routeFeed},
		{"/feed.xml", routeFeed},
		{"/api/objects", routeAPI},
		{"/admin/", routeAdmin},
		{"/admin/objects/new/", routeAdmin},
	}
	for _, tt := range tests {
		if got := classify(tt.path); got != tt.want {
			t.Errorf("classify(%q) = %d, want %d", tt.path, got, tt.want)
		}
	}
}

func TestCacheControlCoversEveryClass(t *testing.T) {
	for _, class := range []routeClass{routePage, routeStatic, routeFeed, routeAPI, routeAdmin} {
		if cacheControl[class] == "" {
			t.Errorf("no Cache-Control for class %d", class)
		}
	}
}
