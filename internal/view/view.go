// Package view renders the HTML pages. Pages are Go html/template files
// embedded in the binary and exposed as templ components, so handlers render
// them the same way they render any other component.
package view

import (
	"crypto/md5"
	"embed"
	"encoding/hex"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/msomdec/quill/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"date":     formatDate,
	"gravatar": GravatarURL,
	// Post bodies are rich HTML written by the admin.
	"trusted": func(s string) template.HTML { return template.HTML(s) },
}

var (
	homeTmpl     = page("home.html")
	postTmpl     = page("post.html")
	postFormTmpl = page("post_form.html")
	loginTmpl    = page("login.html")
	registerTmpl = page("register.html")
	aboutTmpl    = page("about.html")
	contactTmpl  = page("contact.html")
	errorTmpl    = page("error.html")
	commentsTmpl = template.Must(template.New("comments").Funcs(funcs).ParseFS(templateFS, "templates/comments.html"))
)

// page parses a page template together with the layout and shared
// fragments. The root template is the layout.
func page(name string) *template.Template {
	return template.Must(template.New("layout").Funcs(funcs).ParseFS(templateFS,
		"templates/layout.html", "templates/comments.html", "templates/"+name))
}

// Base is the data every page layout needs.
type Base struct {
	Viewer *domain.User
	Flash  string
}

// HomeData is the post listing.
type HomeData struct {
	Base
	Posts []domain.Post
}

func HomePage(base Base, posts []domain.Post) templ.Component {
	return templ.FromGoHTML(homeTmpl, HomeData{Base: base, Posts: posts})
}

// PostData is a post with its comments and the comment form state.
type PostData struct {
	Base
	Post        *domain.Post
	Comments    []domain.CommentWithAuthor
	CommentText string
	Error       string
}

func PostPage(data PostData) templ.Component {
	return templ.FromGoHTML(postTmpl, data)
}

// CommentsFragment renders only the comment list, for partial updates.
func CommentsFragment(comments []domain.CommentWithAuthor) templ.Component {
	return templ.FromGoHTML(commentsTmpl, comments)
}

// PostFields are the values shown in the post editor.
type PostFields struct {
	Title          string
	Subtitle       string
	Body           string
	ImageReference string
	PublishDate    string
}

type PostFormData struct {
	Base
	Action string
	IsEdit bool
	Fields PostFields
	Error  string
}

func PostFormPage(data PostFormData) templ.Component {
	return templ.FromGoHTML(postFormTmpl, data)
}

type LoginData struct {
	Base
	Email string
	Error string
}

func LoginPage(data LoginData) templ.Component {
	return templ.FromGoHTML(loginTmpl, data)
}

type RegisterData struct {
	Base
	Name  string
	Email string
	Error string
}

func RegisterPage(data RegisterData) templ.Component {
	return templ.FromGoHTML(registerTmpl, data)
}

func AboutPage(base Base) templ.Component {
	return templ.FromGoHTML(aboutTmpl, base)
}

func ContactPage(base Base) templ.Component {
	return templ.FromGoHTML(contactTmpl, base)
}

type ErrorData struct {
	Base
	Status  int
	Title   string
	Message string
}

// ErrorPage renders a full error page. The caller writes the status code.
func ErrorPage(base Base, status int, title, message string) templ.Component {
	return templ.FromGoHTML(errorTmpl, ErrorData{Base: base, Status: status, Title: title, Message: message})
}

// GravatarURL returns the 40px avatar URL for an email address.
func GravatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	q := url.Values{"s": {"40"}, "d": {"retro"}, "r": {"g"}}
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?" + q.Encode()
}

func formatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}
