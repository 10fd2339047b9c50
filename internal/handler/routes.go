package handler

import (
	"net/http"

	"github.com/msomdec/quill/internal/service"
)

// RegisterRoutes sets up all HTTP routes on the given mux. The mux expects
// to be served behind Wrap, which resolves the caller identity.
func RegisterRoutes(mux *http.ServeMux, auth *service.AuthService, posts *service.PostService, comments *service.CommentService, db Pinger, cookieSecure bool) {
	authHandler := NewAuthHandler(auth, cookieSecure)
	postHandler := NewPostHandler(posts, comments)

	mux.HandleFunc("GET /healthz", HandleHealthz(db))

	mux.HandleFunc("GET /{$}", postHandler.HandleHome)
	mux.HandleFunc("GET /post/{id}", postHandler.HandleShowPost)
	mux.HandleFunc("POST /post/{id}", postHandler.HandleSubmitComment)
	mux.HandleFunc("GET /post/{id}/comments", postHandler.HandleCommentsFragment)

	mux.HandleFunc("GET /new_post", RequireAdmin(postHandler.HandleNewPostPage))
	mux.HandleFunc("POST /new_post", RequireAdmin(postHandler.HandleCreatePost))
	mux.HandleFunc("GET /edit_post/{id}", RequireAdmin(postHandler.HandleEditPostPage))
	mux.HandleFunc("POST /edit_post/{id}", RequireAdmin(postHandler.HandleUpdatePost))
	mux.HandleFunc("GET /delete/{id}", RequireAdmin(postHandler.HandleDeletePost))

	mux.HandleFunc("GET /register", authHandler.HandleRegisterPage)
	mux.HandleFunc("POST /register", authHandler.HandleRegister)
	mux.HandleFunc("GET /login", authHandler.HandleLoginPage)
	mux.HandleFunc("POST /login", authHandler.HandleLogin)
	mux.HandleFunc("/logout", authHandler.HandleLogout)

	mux.HandleFunc("GET /about", HandleAbout)
	mux.HandleFunc("GET /contact", HandleContact)

	mux.HandleFunc("/", HandleNotFound)
}
