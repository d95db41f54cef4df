// internal/fixtures/templates.go
package fixtures

import "html/template"

// The mock application's pages. Element ids and data-testid attributes are
// what the page objects in internal/pages select on.
var appTemplates = template.Must(template.New("base").Parse(`
{{define "login"}}<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Login | Test App</title></head>
<body>
  <h1>Sign in</h1>
  {{if .Error}}<div class="error-message" role="alert">{{.Error}}</div>{{end}}
  {{if .Notice}}<div class="success-message">{{.Notice}}</div>{{end}}
  <form data-testid="login-form" method="post" action="/login">
    <label>Email <input data-testid="email" name="email" type="email" value="{{.Email}}"></label>
    <label>Password <input data-testid="password" name="password" type="password"></label>
    <label><input data-testid="remember-me" name="remember" type="checkbox" value="1"> Remember me</label>
    <button data-testid="login-button" type="submit">Log in</button>
  </form>
</body>
</html>{{end}}

{{define "dashboard"}}<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Dashboard | Test App</title></head>
<body>
  <div data-testid="dashboard">
    <nav data-testid="sidebar"><a href="/dashboard">Home</a></nav>
    <main data-testid="main-content">
      <h1 data-testid="welcome-message">Welcome, {{.Username}}</h1>
      <div data-testid="loading" style="display:none">Loading...</div>
      <div data-testid="user-info">
        <span data-testid="user-name">{{.Username}}</span>
        <span data-testid="user-email">{{.Email}}</span>
      </div>
      <div data-testid="status-message">{{.Status}}</div>
      <button data-testid="profile-button" type="button"
        onclick="document.querySelector('[data-testid=status-message]').textContent='Profile opened'">Profile</button>
      <form method="post" action="/logout">
        <button data-testid="logout-button" type="submit">Log out</button>
      </form>
    </main>
  </div>
</body>
</html>{{end}}
`))

type loginView struct {
	Email  string
	Error  string
	Notice string
}

type dashboardView struct {
	Username string
	Email    string
	Status   string
}
