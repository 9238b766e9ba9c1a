package handlers

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/middlewares"
)

// Page is the data envelope every view renders inside the layout.
type Page struct {
	Title        string
	FlashError   string
	FlashSuccess string
	CSRF         string
	UserName     string
	Data         any
}

var templateFuncs = template.FuncMap{
	"money": money,
}

const layoutHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} — Bazaar</title>
</head>
<body>
<header>
<nav>
<a href="/">Bazaar</a>
<a href="/products">Products</a>
<a href="/cart">Cart</a>
{{if .UserName}}<a href="/account">{{.UserName}}</a> <a href="/logout">Log out</a>{{else}}<a href="/login">Log in</a>{{end}}
</nav>
</header>
{{if .FlashError}}<p class="flash flash-error">{{.FlashError}}</p>{{end}}
{{if .FlashSuccess}}<p class="flash flash-success">{{.FlashSuccess}}</p>{{end}}
<main>
{{template "content" .}}
</main>
</body>
</html>`

// compiled holds one executable template per view, each the layout plus
// that view's content block.
var compiled = map[string]*template.Template{}

func registerViews(views map[string]string) {
	layout := template.Must(template.New("layout").Funcs(templateFuncs).Parse(layoutHTML))
	for name, src := range views {
		t := template.Must(layout.Clone())
		template.Must(t.Parse(`{{define "content"}}` + src + `{{end}}`))
		compiled[name] = t
	}
}

// render executes a view inside the layout, pulling flashes and the
// anti-forgery token from the request context.
func render(c *dispatch.Context, view, title string, data any) *dispatch.Response {
	return renderAs(c, view, title, "", data)
}

// renderAs is render with the signed-in user's display name for the header.
func renderAs(c *dispatch.Context, view, title, userName string, data any) *dispatch.Response {
	t, ok := compiled[view]
	if !ok {
		c.LogError("unknown view", "view", view)
		return dispatch.Internal()
	}

	page := Page{
		Title:        title,
		FlashError:   c.Flash(dispatch.FlashError),
		FlashSuccess: c.Flash(dispatch.FlashSuccess),
		CSRF:         middlewares.CSRFToken(c),
		UserName:     userName,
		Data:         data,
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, page); err != nil {
		c.LogError("render failed", "view", view, "error", err)
		return dispatch.Internal()
	}
	return dispatch.HTML(http.StatusOK, buf.String())
}
