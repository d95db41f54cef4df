// File: internal/pages/dashboard.go
package pages

import (
	"context"

	"github.com/xkilldash9x/pagekit/internal/page"
	"go.uber.org/zap"
)

// Dashboard selectors.
const (
	DashboardContainer     = "div[data-testid='dashboard']"
	DashboardWelcome       = "h1[data-testid='welcome-message']"
	DashboardUserInfo      = "div[data-testid='user-info']"
	DashboardSidebar       = "nav[data-testid='sidebar']"
	DashboardLogoutButton  = "button[data-testid='logout-button']"
	DashboardProfileButton = "button[data-testid='profile-button']"
	DashboardMainContent   = "main[data-testid='main-content']"
	DashboardUserName      = "span[data-testid='user-name']"
	DashboardUserEmail     = "span[data-testid='user-email']"
	DashboardStatus        = "div[data-testid='status-message']"
	DashboardSpinner       = "div[data-testid='loading']"
)

// LoginURLPattern matches the page a logout lands on.
const LoginURLPattern = "**/login"

type DashboardPage struct {
	p   *page.Page
	log *zap.Logger
}

func NewDashboardPage(p *page.Page) *DashboardPage {
	return &DashboardPage{p: p, log: p.Logger().Named("dashboard")}
}

func (d *DashboardPage) Page() *page.Page { return d.p }

// VerifyLoaded asserts the container and welcome heading, then waits for network idle.
func (d *DashboardPage) VerifyLoaded(ctx context.Context) error {
	d.log.Info("Verifying dashboard is loaded")
	for _, sel := range []string{DashboardContainer, DashboardWelcome} {
		if err := d.p.AssertElementVisible(ctx, sel); err != nil {
			return err
		}
	}
	return d.p.WaitForLoadState(ctx, page.LoadStateNetworkIdle, 0)
}

func (d *DashboardPage) WelcomeMessage(ctx context.Context) string {
	return d.p.GetText(ctx, DashboardWelcome)
}

// VerifyLoggedIn asserts the user panel and logout button are shown and,
// when username is not empty, that the displayed name matches it exactly.
func (d *DashboardPage) VerifyLoggedIn(ctx context.Context, username string) error {
	if err := d.p.AssertElementVisible(ctx, DashboardUserInfo); err != nil {
		return err
	}
	if err := d.p.AssertElementVisible(ctx, DashboardLogoutButton); err != nil {
		return err
	}
	if username != "" {
		return d.p.AssertTextExact(ctx, DashboardUserName, username)
	}
	return nil
}

func (d *DashboardPage) Username(ctx context.Context) string {
	return d.p.GetText(ctx, DashboardUserName)
}

func (d *DashboardPage) Email(ctx context.Context) string {
	return d.p.GetText(ctx, DashboardUserEmail)
}

func (d *DashboardPage) Logout(ctx context.Context) error {
	d.log.Info("Clicking logout button")
	return d.p.Click(ctx, DashboardLogoutButton)
}

func (d *DashboardPage) WaitForLogoutRedirect(ctx context.Context) error {
	return d.p.WaitForURL(ctx, LoginURLPattern, 0)
}

func (d *DashboardPage) OpenProfile(ctx context.Context) error {
	return d.p.Click(ctx, DashboardProfileButton)
}

func (d *DashboardPage) WaitForSpinnerHidden(ctx context.Context) error {
	return d.p.WaitForElementHidden(ctx, DashboardSpinner, 0)
}

func (d *DashboardPage) StatusMessage(ctx context.Context) string {
	return d.p.GetText(ctx, DashboardStatus)
}

// VerifyElements asserts every structural element of the dashboard is visible.
func (d *DashboardPage) VerifyElements(ctx context.Context) error {
	for _, sel := range []string{
		DashboardContainer,
		DashboardWelcome,
		DashboardSidebar,
		DashboardUserInfo,
		DashboardMainContent,
		DashboardLogoutButton,
	} {
		if err := d.p.AssertElementVisible(ctx, sel); err != nil {
			return err
		}
	}
	return nil
}

func (d *DashboardPage) ScrollToProfile(ctx context.Context) error {
	return d.p.ScrollToElement(ctx, DashboardUserInfo)
}

// Screenshot saves "<name>.png"; an empty name means "dashboard".
func (d *DashboardPage) Screenshot(ctx context.Context, name string) (string, error) {
	if name == "" {
		name = "dashboard"
	}
	return d.p.TakeScreenshot(ctx, name+".png")
}
