package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/valpere/musicmanager/internal/browser"
	"github.com/valpere/musicmanager/internal/entity"
	apperrors "github.com/valpere/musicmanager/internal/errors"
	"github.com/valpere/musicmanager/internal/scraper"
	"github.com/valpere/musicmanager/internal/utils"
)

const (
	facebookFragment = "facebook.com"
	// FacebookRedirectLink prefixes the links Facebook wraps outbound URLs in.
	FacebookRedirectLink = "https://l.facebook.com/l.php"

	facebookLoginMarker        = "You must log in to continue."
	facebookPrivateGroupMarker = "Private group"
	facebookContentWrapper     = "userContentWrapper"

	// DefaultRedirectLinkLimit caps redirect links accepted from one post.
	DefaultRedirectLinkLimit = 10
)

// PostType tells how a Facebook page has to be read.
type PostType string

const (
	PrivatePost      PostType = "private_post"
	PrivateGroupPost PostType = "private_group_post"
	PublicPost       PostType = "public"
)

// FacebookConfig wires the Facebook provider.
type FacebookConfig struct {
	Fetcher PageFetcher
	// Anonymous renders public pages whose links only appear after scripts run.
	Anonymous browser.Renderer
	// Session renders pages with a logged-in browser profile.
	Session browser.Renderer
	// URLMatchers selects the links worth emitting, normally the matchers
	// of every media provider.
	URLMatchers       []string
	RedirectLinkLimit int
	Logger            utils.Logger
}

// Facebook is a redirecting provider: posts only link to media elsewhere.
type Facebook struct {
	fetcher   PageFetcher
	anonymous browser.Renderer
	session   browser.Renderer
	matchers  matchers
	limit     int
	logger    utils.Logger
}

// NewFacebook creates the provider. Missing renderers behave as disabled.
func NewFacebook(cfg FacebookConfig) *Facebook {
	if cfg.Logger == nil {
		cfg.Logger = utils.NewNopLogger()
	}
	if cfg.RedirectLinkLimit <= 0 {
		cfg.RedirectLinkLimit = DefaultRedirectLinkLimit
	}
	if cfg.Anonymous == nil {
		cfg.Anonymous = noRenderer{}
	}
	if cfg.Session == nil {
		cfg.Session = noRenderer{}
	}
	m := utils.UniqueStrings(append(append([]string(nil), cfg.URLMatchers...), FacebookRedirectLink))
	return &Facebook{
		fetcher:   cfg.Fetcher,
		anonymous: cfg.Anonymous,
		session:   cfg.Session,
		matchers:  m,
		limit:     cfg.RedirectLinkLimit,
		logger:    cfg.Logger.WithField("provider", FacebookName),
	}
}

func (f *Facebook) Name() string              { return FacebookName }
func (f *Facebook) CanHandle(url string) bool { return strings.Contains(url, facebookFragment) }
func (f *Facebook) IsTerminal() bool          { return false }

// URLMatchers only names the redirect link format; posts themselves are
// never emitted.
func (f *Facebook) URLMatchers() []string { return []string{FacebookRedirectLink} }

// Classify reads the post title. Posts carry no duration, so the entity
// is always Unknown.
func (f *Facebook) Classify(ctx context.Context, url string) (entity.IntermediateEntity, error) {
	page, err := f.fetcher.Fetch(ctx, url)
	if err != nil {
		return entity.IntermediateEntity{}, err
	}
	doc, err := scraper.NewPageDocument(page)
	if err != nil {
		return entity.IntermediateEntity{}, apperrors.Wrap(apperrors.KindParse, url, err)
	}
	e := entity.NewIntermediateEntity(doc.Title(), entity.UnknownDuration, url)
	e.Provider = FacebookName
	return e, nil
}

// EmitLinks implements LinkEmitter.
func (f *Facebook) EmitLinks(ctx context.Context, url string) ([]string, error) {
	f.logger.Infof("emitting links from %s", url)
	page, err := f.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := scraper.NewPageDocument(page)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindParse, url, err)
	}

	postType, err := DetectPostType(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	f.logger.Debugf("%s is a %s", url, postType)

	switch postType {
	case PrivatePost:
		rendered, err := f.render(ctx, f.session, url)
		if err != nil {
			return nil, fmt.Errorf("private post %s needs a browser session: %w", url, err)
		}
		return f.nonEmpty(url, f.FilterLinks(ctx, rendered.Links()))
	case PrivateGroupPost:
		return f.nonEmpty(url, f.FilterLinks(ctx, doc.Links()))
	default:
		return f.publicLinks(ctx, url, doc)
	}
}

// DetectPostType tells login-gated posts and private groups from public
// content.
func DetectPostType(doc *scraper.Document) (PostType, error) {
	private := doc.Contains(facebookLoginMarker)
	group := doc.Contains(facebookPrivateGroupMarker)
	switch {
	case private && group:
		return "", errors.New("page is both a private post and a private group post")
	case private:
		return PrivatePost, nil
	case group:
		return PrivateGroupPost, nil
	default:
		return PublicPost, nil
	}
}

type linkStrategy struct {
	name string
	run  func(ctx context.Context, url string, doc *scraper.Document) []string
}

// publicLinks tries each strategy in turn and returns the first non-empty
// result.
func (f *Facebook) publicLinks(ctx context.Context, url string, doc *scraper.Document) ([]string, error) {
	strategies := []linkStrategy{
		{"classless divs", func(ctx context.Context, _ string, doc *scraper.Document) []string {
			return f.FilterLinks(ctx, doc.LinksInClasslessDivs())
		}},
		{"html comments", func(ctx context.Context, _ string, doc *scraper.Document) []string {
			var links []string
			for _, c := range doc.CommentDocuments(facebookContentWrapper) {
				links = append(links, c.LinksWithin("div."+facebookContentWrapper)...)
			}
			return f.FilterLinks(ctx, links)
		}},
		{"rendered page", func(ctx context.Context, url string, _ *scraper.Document) []string {
			f.logger.Infof("falling back to the rendered page for %s", url)
			rendered, err := f.render(ctx, f.anonymous, url)
			if err != nil {
				f.logger.Warnf("render %s: %v", url, err)
				return nil
			}
			return f.FilterLinks(ctx, rendered.Links())
		}},
	}

	for _, s := range strategies {
		if links := s.run(ctx, url, doc); len(links) > 0 {
			f.logger.Debugf("found %d links in %s via %s", len(links), url, s.name)
			return links, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", url, ErrNoLinks)
}

func (f *Facebook) nonEmpty(url string, links []string) ([]string, error) {
	if len(links) == 0 {
		return nil, fmt.Errorf("%s: %w", url, ErrNoLinks)
	}
	return links, nil
}

func (f *Facebook) render(ctx context.Context, r browser.Renderer, url string) (*scraper.Document, error) {
	page, err := r.Render(ctx, url)
	if err != nil {
		return nil, err
	}
	return scraper.NewDocument(page.HTML, page.URL)
}

// FilterLinks keeps links that contain a known URL matcher, removes the
// fbclid tracking parameter and unwraps redirect links. Order is kept and
// duplicates collapse. More redirect links than the limit yields nothing.
func (f *Facebook) FilterLinks(ctx context.Context, links []string) []string {
	var matched []string
	for _, link := range links {
		if f.matchers.match(link) {
			matched = append(matched, utils.RemoveQueryParam(link, "fbclid"))
		}
	}
	matched = utils.UniqueStrings(matched)

	redirects := 0
	for _, link := range matched {
		if strings.Contains(link, FacebookRedirectLink) {
			redirects++
		}
	}
	if redirects > f.limit {
		f.logger.Errorf("found %d redirect links, the limit is %d", redirects, f.limit)
		return nil
	}

	final := make([]string, 0, len(matched))
	for _, link := range matched {
		if strings.Contains(link, FacebookRedirectLink) {
			target, err := f.unwrap(ctx, link)
			if err != nil {
				f.logger.Warnf("cannot unwrap %s: %v", link, err)
				continue
			}
			link = utils.RemoveQueryParam(target, "fbclid")
		}
		final = append(final, link)
	}
	return utils.UniqueStrings(final)
}

// unwrap returns the target of an l.php redirect link: the u query
// parameter, or else the location the redirect page's script replaces
// itself with.
func (f *Facebook) unwrap(ctx context.Context, link string) (string, error) {
	if u, err := url.Parse(link); err == nil {
		if target := u.Query().Get("u"); target != "" {
			return target, nil
		}
	}

	page, err := f.fetcher.Fetch(ctx, link)
	if err != nil {
		return "", err
	}
	doc, err := scraper.NewPageDocument(page)
	if err != nil {
		return "", err
	}
	if target := doc.ScriptRedirect(); target != "" {
		return target, nil
	}
	return "", errors.New("no redirect target on the page")
}

type noRenderer struct{}

func (noRenderer) Render(context.Context, string) (*browser.RenderedPage, error) {
	return nil, browser.ErrDisabled
}
func (noRenderer) Close() error { return nil }
