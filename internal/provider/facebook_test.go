package provider

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/valpere/musicmanager/internal/browser"
	"github.com/valpere/musicmanager/internal/scraper"
)

var testMatchers = []string{"youtube.com", "youtu.be", "soundcloud.com", "mixcloud.com"}

func redirectLink(target string) string {
	return FacebookRedirectLink + "?u=" + strings.NewReplacer(":", "%3A", "/", "%2F", "?", "%3F", "=", "%3D", "&", "%26").Replace(target) + "&h=AT2x"
}

func newTestFacebook(fetcher PageFetcher, anon, session browser.Renderer) *Facebook {
	return NewFacebook(FacebookConfig{
		Fetcher:     fetcher,
		Anonymous:   anon,
		Session:     session,
		URLMatchers: testMatchers,
	})
}

func TestFilterLinks(t *testing.T) {
	const scriptRedirect = FacebookRedirectLink + "?h=only"
	fetcher := &fakeFetcher{pages: map[string]string{
		scriptRedirect: `<script>document.location.replace("https:\/\/www.mixcloud.com\/dj\/set\/");</script>`,
	}}
	fb := newTestFacebook(fetcher, nil, nil)

	links := []string{
		"https://www.facebook.com/profile",
		"https://soundcloud.com/a?fbclid=IwAR0",
		"https://soundcloud.com/a",
		redirectLink("https://youtube.com/watch?v=cI6&feature=share"),
		"https://example.com/unrelated",
		scriptRedirect,
		"https://youtu.be/b",
	}
	got := fb.FilterLinks(context.Background(), links)
	want := []string{
		"https://soundcloud.com/a",
		"https://youtube.com/watch?v=cI6&feature=share",
		"https://www.mixcloud.com/dj/set/",
		"https://youtu.be/b",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterLinks() =\n%v\nwant\n%v", got, want)
	}
}

func TestFilterLinksRedirectLimit(t *testing.T) {
	fb := NewFacebook(FacebookConfig{Fetcher: &fakeFetcher{}, URLMatchers: testMatchers, RedirectLinkLimit: 2})
	var links []string
	for i := 0; i < 3; i++ {
		links = append(links, redirectLink(fmt.Sprintf("https://youtu.be/%d", i)))
	}
	if got := fb.FilterLinks(context.Background(), links); len(got) != 0 {
		t.Errorf("expected no links above the limit, got %v", got)
	}
	if got := fb.FilterLinks(context.Background(), links[:2]); len(got) != 2 {
		t.Errorf("expected 2 links at the limit, got %v", got)
	}
}

func TestDetectPostType(t *testing.T) {
	tests := []struct {
		html    string
		want    PostType
		wantErr bool
	}{
		{`<div>You must log in to continue.</div>`, PrivatePost, false},
		{`<div><span>Private group</span></div>`, PrivateGroupPost, false},
		{`<div>hello</div>`, PublicPost, false},
		{`<div>You must log in to continue.</div><div>Private group</div>`, "", true},
	}
	for _, tt := range tests {
		doc, err := scraper.NewDocument(tt.html, "https://www.facebook.com/x")
		if err != nil {
			t.Fatal(err)
		}
		got, err := DetectPostType(doc)
		if (err != nil) != tt.wantErr {
			t.Errorf("DetectPostType(%q) error = %v", tt.html, err)
			continue
		}
		if got != tt.want {
			t.Errorf("DetectPostType(%q) = %s, want %s", tt.html, got, tt.want)
		}
	}
}

func TestEmitLinksPublicStrategies(t *testing.T) {
	const post = "https://www.facebook.com/groups/1/posts/2"

	t.Run("classless divs", func(t *testing.T) {
		fetcher := &fakeFetcher{pages: map[string]string{
			post: `<div class="x"><a href="https://youtu.be/skip">x</a></div><div><a href="https://youtu.be/a">a</a></div>`,
		}}
		anon := &fakeRenderer{}
		links, err := newTestFacebook(fetcher, anon, nil).EmitLinks(context.Background(), post)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(links, []string{"https://youtu.be/a"}) {
			t.Errorf("links = %v", links)
		}
		if anon.calls != 0 {
			t.Errorf("renderer should not be used, got %d calls", anon.calls)
		}
	})

	t.Run("html comments", func(t *testing.T) {
		fetcher := &fakeFetcher{pages: map[string]string{
			post: `<div class="hidden_elem"><code><!-- <div class="_5pcr userContentWrapper"><a href="` +
				redirectLink("https://soundcloud.com/c") + `">c</a></div> --></code></div>`,
		}}
		links, err := newTestFacebook(fetcher, nil, nil).EmitLinks(context.Background(), post)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(links, []string{"https://soundcloud.com/c"}) {
			t.Errorf("links = %v", links)
		}
	})

	t.Run("rendered fallback", func(t *testing.T) {
		fetcher := &fakeFetcher{pages: map[string]string{post: `<div class="x">nothing here</div>`}}
		anon := &fakeRenderer{html: `<div class="y"><a href="https://www.mixcloud.com/r/">r</a></div>`}
		links, err := newTestFacebook(fetcher, anon, nil).EmitLinks(context.Background(), post)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(links, []string{"https://www.mixcloud.com/r/"}) {
			t.Errorf("links = %v", links)
		}
		if anon.calls != 1 {
			t.Errorf("renderer calls = %d", anon.calls)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		fetcher := &fakeFetcher{pages: map[string]string{post: `<div class="x">nothing here</div>`}}
		_, err := newTestFacebook(fetcher, nil, nil).EmitLinks(context.Background(), post)
		if !errors.Is(err, ErrNoLinks) {
			t.Errorf("error = %v, want ErrNoLinks", err)
		}
	})
}

func TestEmitLinksPrivate(t *testing.T) {
	const post = "https://www.facebook.com/permalink/9"

	t.Run("login gated uses the session", func(t *testing.T) {
		fetcher := &fakeFetcher{pages: map[string]string{post: `<div>You must log in to continue.</div>`}}
		anon := &fakeRenderer{}
		session := &fakeRenderer{html: `<a href="https://soundcloud.com/p?fbclid=1">p</a>`}
		links, err := newTestFacebook(fetcher, anon, session).EmitLinks(context.Background(), post)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(links, []string{"https://soundcloud.com/p"}) {
			t.Errorf("links = %v", links)
		}
		if session.calls != 1 || anon.calls != 0 {
			t.Errorf("session calls = %d, anonymous calls = %d", session.calls, anon.calls)
		}
	})

	t.Run("login gated without a session", func(t *testing.T) {
		fetcher := &fakeFetcher{pages: map[string]string{post: `<div>You must log in to continue.</div>`}}
		_, err := newTestFacebook(fetcher, nil, nil).EmitLinks(context.Background(), post)
		if !errors.Is(err, browser.ErrDisabled) {
			t.Errorf("error = %v, want ErrDisabled", err)
		}
	})

	t.Run("private group reads the page", func(t *testing.T) {
		fetcher := &fakeFetcher{pages: map[string]string{
			post: `<div class="g">Private group</div><div class="p"><a href="https://youtu.be/g">g</a></div>`,
		}}
		links, err := newTestFacebook(fetcher, nil, nil).EmitLinks(context.Background(), post)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(links, []string{"https://youtu.be/g"}) {
			t.Errorf("links = %v", links)
		}
	})
}

func TestFacebookClassify(t *testing.T) {
	const post = "https://www.facebook.com/x"
	fetcher := &fakeFetcher{pages: map[string]string{post: `<title>A post</title>`}}
	e, err := newTestFacebook(fetcher, nil, nil).Classify(context.Background(), post)
	if err != nil {
		t.Fatal(err)
	}
	if e.Title != "A post" || e.Duration.IsKnown() || e.Provider != FacebookName {
		t.Errorf("entity = %+v", e)
	}
}
