package pages_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/pagekit/internal/page"
	"github.com/xkilldash9x/pagekit/internal/page/pagetest"
	"github.com/xkilldash9x/pagekit/internal/pages"
	"github.com/xkilldash9x/pagekit/internal/wait"
	"go.uber.org/zap/zaptest"
)

// fakeApp scripts the login and dashboard screens on a FakeDriver.
func fakeApp(t *testing.T) (*pagetest.FakeDriver, *page.Page) {
	t.Helper()
	d := pagetest.NewFakeDriver()
	p := page.New(d,
		page.WithLogger(zaptest.NewLogger(t)),
		page.WithClock(wait.NewFakeClock(time.Unix(0, 0))),
		page.WithTimeouts(page.Timeouts{ElementWait: time.Second, PageLoad: time.Second, Poll: 50 * time.Millisecond}),
		page.WithBaseURL("http://app.test/login"),
		page.WithScreenshotDir(t.TempDir()),
	)

	showLogin := func() {
		d.Visible(pages.LoginForm, "")
		d.Visible(pages.LoginTitle, "Sign in")
		d.Visible(pages.LoginEmailInput, "")
		d.Visible(pages.LoginPasswordInput, "")
		d.Visible(pages.LoginButton, "Log in")
		d.Set(pages.LoginRememberMe, pagetest.Element{Visible: true, Enabled: true, Checkable: true})
	}
	showLogin()

	d.OnClick = func(d *pagetest.FakeDriver, sel string) error {
		switch sel {
		case pages.LoginButton:
			if d.Value(pages.LoginEmailInput) != "user@example.com" || d.Value(pages.LoginPasswordInput) != "secret" {
				d.Visible(pages.LoginErrorMessage, "Invalid email or password")
				return nil
			}
			for _, s := range []string{pages.LoginForm, pages.LoginEmailInput, pages.LoginPasswordInput, pages.LoginButton, pages.LoginErrorMessage} {
				d.Remove(s)
			}
			d.SetURL("http://app.test/dashboard")
			d.Visible(pages.DashboardContainer, "")
			d.Visible(pages.DashboardWelcome, "Welcome, testuser")
			d.Visible(pages.DashboardUserInfo, "")
			d.Visible(pages.DashboardSidebar, "")
			d.Visible(pages.DashboardMainContent, "")
			d.Visible(pages.DashboardLogoutButton, "Log out")
			d.Visible(pages.DashboardUserName, "testuser")
			d.Visible(pages.DashboardUserEmail, "user@example.com")
			d.Visible(pages.DashboardStatus, "All systems go")
		case pages.DashboardLogoutButton:
			d.SetURL("http://app.test/login")
			showLogin()
		}
		return nil
	}
	return d, p
}

func TestLoginPage_SuccessfulLogin(t *testing.T) {
	ctx := context.Background()
	d, p := fakeApp(t)
	login := pages.NewLoginPage(p)

	require.NoError(t, login.Open(ctx))
	require.NoError(t, login.VerifyDisplayed(ctx))
	require.NoError(t, login.WaitForLoad(ctx))
	assert.True(t, login.IsFormReady(ctx))
	assert.Equal(t, "Sign in", login.Title(ctx))

	require.NoError(t, login.LoginWithRememberMe(ctx, "user@example.com", "secret"))
	require.NoError(t, p.WaitForURL(ctx, "**/dashboard", 0))

	el, ok := d.Element(pages.LoginRememberMe)
	require.True(t, ok)
	assert.True(t, el.Checked)

	dash := pages.NewDashboardPage(p)
	require.NoError(t, dash.VerifyLoaded(ctx))
	require.NoError(t, dash.VerifyElements(ctx))
	require.NoError(t, dash.VerifyLoggedIn(ctx, "testuser"))
	assert.Equal(t, "Welcome, testuser", dash.WelcomeMessage(ctx))
	assert.Equal(t, "testuser", dash.Username(ctx))
	assert.Equal(t, "user@example.com", dash.Email(ctx))
	assert.Equal(t, "All systems go", dash.StatusMessage(ctx))
	require.NoError(t, dash.WaitForSpinnerHidden(ctx))
	require.NoError(t, dash.ScrollToProfile(ctx))

	path, err := dash.Screenshot(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, path, "dashboard.png")

	require.NoError(t, dash.Logout(ctx))
	require.NoError(t, dash.WaitForLogoutRedirect(ctx))
	require.NoError(t, login.VerifyDisplayed(ctx))
}

func TestLoginPage_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	_, p := fakeApp(t)
	login := pages.NewLoginPage(p)

	require.NoError(t, login.Open(ctx))
	require.NoError(t, login.VerifyNoError(ctx))
	require.NoError(t, login.Login(ctx, "user@example.com", "wrong"))

	text, err := login.VerifyError(ctx, "Invalid email")
	require.NoError(t, err)
	assert.Equal(t, "Invalid email or password", text)

	_, err = login.VerifyError(ctx, "locked")
	assert.ErrorIs(t, err, page.ErrAssertion)

	err = login.VerifyNoError(ctx)
	assert.ErrorIs(t, err, page.ErrAssertion)
	assert.EqualError(t, err, "Error message should not be displayed")
}

func TestDashboardPage_VerifyLoggedInMismatch(t *testing.T) {
	ctx := context.Background()
	_, p := fakeApp(t)
	require.NoError(t, pages.NewLoginPage(p).Login(ctx, "user@example.com", "secret"))

	err := pages.NewDashboardPage(p).VerifyLoggedIn(ctx, "admin")
	var ae *page.AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "admin", ae.Expected)
	assert.Equal(t, "testuser", ae.Actual)
}

func TestDocsPage(t *testing.T) {
	ctx := context.Background()
	d, p := fakeApp(t)
	d.SetTitle("Fast and reliable end-to-end testing for modern web apps | Playwright")
	d.Visible(pages.DocsLogo, "Playwright")
	d.Visible(pages.DocsHeading, "Installation")
	d.Visible(pages.DocsGetStartedLink, "Get started")

	docs := pages.NewDocsPage(p)
	require.NoError(t, docs.Open(ctx))
	assert.Equal(t, pages.DocsURL, p.CurrentURL(ctx))
	assert.True(t, docs.IsLoaded(ctx))
	assert.Contains(t, docs.Title(ctx), "Playwright")
	require.NoError(t, docs.ClickGetStarted(ctx))
	assert.Equal(t, "Installation", docs.Heading(ctx))
}
