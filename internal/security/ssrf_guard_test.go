package security

import "testing"

func TestValidateURL_AllowsPublicHTTPS(t *testing.T) {
	g := NewSSRFGuard()
	if err := g.ValidateURL("https://example.com/post/1"); err != nil {
		t.Errorf("公開URLは許可されるべき: %v", err)
	}
}

func TestValidateURL_RejectsNonHTTPSchemes(t *testing.T) {
	g := NewSSRFGuard()
	for _, u := range []string{"ftp://example.com/", "file:///etc/passwd", "gopher://example.com"} {
		if err := g.ValidateURL(u); err == nil {
			t.Errorf("%s は拒否されるべき", u)
		}
	}
}

func TestValidateURL_RejectsPrivateAndLoopbackIPs(t *testing.T) {
	g := NewSSRFGuard()
	for _, u := range []string{
		"http://10.0.0.5/",
		"http://172.16.1.1/",
		"http://192.168.0.1/",
		"http://127.0.0.1/",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]/",
	} {
		if err := g.ValidateURL(u); err == nil {
			t.Errorf("%s は拒否されるべき", u)
		}
	}
}

func TestValidateURL_RejectsLocalhostAndEmpty(t *testing.T) {
	g := NewSSRFGuard()
	if err := g.ValidateURL("http://localhost/admin"); err == nil {
		t.Error("localhost は拒否されるべき")
	}
	if err := g.ValidateURL(""); err == nil {
		t.Error("空URLは拒否されるべき")
	}
}
