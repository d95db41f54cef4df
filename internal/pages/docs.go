// File: internal/pages/docs.go
package pages

import (
	"context"

	"github.com/xkilldash9x/pagekit/internal/page"
)

// DocsURL is the public documentation site the docs smoke flow targets.
const DocsURL = "https://playwright.dev/"

// Docs site selectors. DocsGetStartedLink uses a text pseudo-class that only
// the playwright engine understands.
const (
	DocsLogo           = "a.navbar__brand"
	DocsSearchInput    = "input[class*='search']"
	DocsGetStartedLink = "a:has-text('Get started')"
	DocsHeading        = "h1"
	DocsMainContent    = "main"
)

type DocsPage struct {
	p *page.Page
}

func NewDocsPage(p *page.Page) *DocsPage { return &DocsPage{p: p} }

func (d *DocsPage) Open(ctx context.Context) error {
	if err := d.p.Goto(ctx, DocsURL); err != nil {
		return err
	}
	return d.p.WaitForLoadState(ctx, page.LoadStateNetworkIdle, 0)
}

func (d *DocsPage) IsLoaded(ctx context.Context) bool {
	return d.p.IsVisible(ctx, DocsLogo)
}

func (d *DocsPage) Title(ctx context.Context) string {
	return d.p.Title(ctx)
}

func (d *DocsPage) Heading(ctx context.Context) string {
	return d.p.GetText(ctx, DocsHeading)
}

func (d *DocsPage) ClickGetStarted(ctx context.Context) error {
	if err := d.p.Click(ctx, DocsGetStartedLink); err != nil {
		return err
	}
	return d.p.WaitForLoadState(ctx, page.LoadStateNetworkIdle, 0)
}
