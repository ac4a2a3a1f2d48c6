package models

import "testing"

func TestMediaRequestValidate(t *testing.T) {
	valid := MediaRequest{URL: "https://example.com/clip.gif", Kind: KindAnimatedImage}
	if err := valid.Validate(); err != nil {
		t.Errorf("Valid request rejected: %v", err)
	}

	cases := []struct {
		name string
		req  MediaRequest
	}{
		{"empty url", MediaRequest{Kind: KindVideo}},
		{"relative url", MediaRequest{URL: "clip.gif", Kind: KindVideo}},
		{"unknown kind", MediaRequest{URL: "https://example.com/a.mp4", Kind: "sticker"}},
		{"missing kind", MediaRequest{URL: "https://example.com/a.mp4"}},
	}
	for _, tc := range cases {
		if err := tc.req.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestMediaRequestID(t *testing.T) {
	a := MediaRequest{URL: "https://example.com/clip.gif", Kind: KindAnimatedImage}
	b := MediaRequest{URL: "https://example.com/clip.gif", Kind: KindAnimatedImage}
	c := MediaRequest{URL: "https://example.com/clip.gif", Kind: KindVideo}

	if a.ID() != b.ID() {
		t.Error("Identical requests should share an id")
	}
	if a.ID() == c.ID() {
		t.Error("Same url with different kind should get a different id")
	}
	if len(a.ID()) != 24 {
		t.Errorf("Expected 24-character id, got %d", len(a.ID()))
	}
}

func TestAllowsScheme(t *testing.T) {
	token := &FramepressJWT{Subject: "caller"}

	// http(s) is always permitted
	if !token.AllowsScheme("http") || !token.AllowsScheme("https") {
		t.Error("Token without sources should still allow http and https")
	}
	if token.AllowsScheme("s3") {
		t.Error("Token without sources should not allow s3")
	}

	token.Sources = []string{"s3", "gs"}
	if !token.AllowsScheme("s3") || !token.AllowsScheme("gs") {
		t.Error("Token should allow its listed sources")
	}
	if token.AllowsScheme("sftp") {
		t.Error("Token should not allow unlisted sftp")
	}
}
