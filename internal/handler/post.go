package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	datastar "github.com/starfederation/datastar-go/datastar"

	"github.com/msomdec/quill/internal/domain"
	"github.com/msomdec/quill/internal/service"
	"github.com/msomdec/quill/internal/view"
)

const loginRequiredMessage = "You need to login or register to comment."

// PostHandler handles post and comment HTTP requests.
type PostHandler struct {
	posts    *service.PostService
	comments *service.CommentService
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(posts *service.PostService, comments *service.CommentService) *PostHandler {
	return &PostHandler{posts: posts, comments: comments}
}

// HandleHome lists every post, newest first.
// GET /
func (h *PostHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.List(r.Context())
	if err != nil {
		serverError(w, r, "list posts", err)
		return
	}
	render(w, r, http.StatusOK, view.HomePage(baseData(w, r), posts))
}

// HandleShowPost renders a post with its comments.
// GET /post/{id}
func (h *PostHandler) HandleShowPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		notFound(w, r)
		return
	}
	h.renderPost(w, r, id, http.StatusOK, "", "")
}

// HandleSubmitComment adds a comment by the current user. Anonymous callers
// are sent to the login page and nothing is stored.
// POST /post/{id}
func (h *PostHandler) HandleSubmitComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		notFound(w, r)
		return
	}

	identity := IdentityFromContext(r.Context())
	if !identity.IsAuthenticated() {
		setFlash(w, loginRequiredMessage)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	text := r.PostFormValue("comment_text")

	_, err := h.comments.Create(r.Context(), id, identity.User.ID, text)
	switch {
	case err == nil:
		http.Redirect(w, r, postURL(id), http.StatusSeeOther)
	case errors.Is(err, domain.ErrNotFound):
		notFound(w, r)
	case errors.Is(err, domain.ErrInvalidInput):
		h.renderPost(w, r, id, http.StatusUnprocessableEntity, text, "Comment cannot be empty.")
	default:
		serverError(w, r, "create comment", err)
	}
}

// HandleCommentsFragment streams the current comment list as a datastar
// patch of the #comments element.
// GET /post/{id}/comments
func (h *PostHandler) HandleCommentsFragment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		notFound(w, r)
		return
	}
	if _, err := h.posts.Get(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		slog.Error("get post for comments fragment", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	comments, err := h.comments.ListForPost(r.Context(), id)
	if err != nil {
		slog.Error("list comments for fragment", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sse := datastar.NewSSE(w, r)
	if err := sse.PatchElementTempl(
		view.CommentsFragment(comments),
		datastar.WithSelectorID("comments"),
		datastar.WithModeInner(),
	); err != nil {
		slog.Warn("patch comments fragment", "error", err)
	}
}

// HandleNewPostPage renders an empty post editor.
// GET /new_post (admin)
func (h *PostHandler) HandleNewPostPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, view.PostFormPage(view.PostFormData{
		Base:   baseData(w, r),
		Action: "/new_post",
	}))
}

// HandleCreatePost stores a new post by the current admin.
// POST /new_post (admin)
func (h *PostHandler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	in, ok := postInput(w, r)
	if !ok {
		return
	}

	_, err := h.posts.Create(r.Context(), UserFromContext(r.Context()), in)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			render(w, r, http.StatusUnprocessableEntity, view.PostFormPage(view.PostFormData{
				Base:   baseData(w, r),
				Action: "/new_post",
				Fields: fieldsFrom(in),
				Error:  err.Error(),
			}))
			return
		}
		serverError(w, r, "create post", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleEditPostPage renders the editor filled with the stored post.
// GET /edit_post/{id} (admin)
func (h *PostHandler) HandleEditPostPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		notFound(w, r)
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w, r)
			return
		}
		serverError(w, r, "get post for edit", err)
		return
	}

	render(w, r, http.StatusOK, view.PostFormPage(view.PostFormData{
		Base:   baseData(w, r),
		Action: editURL(id),
		IsEdit: true,
		Fields: fieldsFrom(service.PostInputFrom(post)),
	}))
}

// HandleUpdatePost replaces the editable fields of a post.
// POST /edit_post/{id} (admin)
func (h *PostHandler) HandleUpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		notFound(w, r)
		return
	}
	in, ok := postInput(w, r)
	if !ok {
		return
	}

	_, err := h.posts.Update(r.Context(), id, in)
	switch {
	case err == nil:
		http.Redirect(w, r, postURL(id), http.StatusSeeOther)
	case errors.Is(err, domain.ErrNotFound):
		notFound(w, r)
	case errors.Is(err, domain.ErrInvalidInput):
		render(w, r, http.StatusUnprocessableEntity, view.PostFormPage(view.PostFormData{
			Base:   baseData(w, r),
			Action: editURL(id),
			IsEdit: true,
			Fields: fieldsFrom(in),
			Error:  err.Error(),
		}))
	default:
		serverError(w, r, "update post", err)
	}
}

// HandleDeletePost removes a post. Deleting a post that is already gone
// still redirects home.
// GET /delete/{id} (admin)
func (h *PostHandler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		notFound(w, r)
		return
	}
	if err := h.posts.Delete(r.Context(), id); err != nil {
		serverError(w, r, "delete post", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PostHandler) renderPost(w http.ResponseWriter, r *http.Request, id int64, status int, commentText, errMsg string) {
	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w, r)
			return
		}
		serverError(w, r, "get post", err)
		return
	}

	comments, err := h.comments.ListForPost(r.Context(), id)
	if err != nil {
		serverError(w, r, "list comments", err)
		return
	}

	render(w, r, status, view.PostPage(view.PostData{
		Base:        baseData(w, r),
		Post:        post,
		Comments:    comments,
		CommentText: commentText,
		Error:       errMsg,
	}))
}

// postInput parses the post editor form. It writes a 400 and reports false
// when the body cannot be parsed.
func postInput(w http.ResponseWriter, r *http.Request) (service.PostInput, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return service.PostInput{}, false
	}
	return service.PostInput{
		Title:          r.PostFormValue("title"),
		Subtitle:       r.PostFormValue("subtitle"),
		Body:           r.PostFormValue("body"),
		ImageReference: r.PostFormValue("img_url"),
		PublishDate:    r.PostFormValue("date"),
	}, true
}

func fieldsFrom(in service.PostInput) view.PostFields {
	return view.PostFields{
		Title:          in.Title,
		Subtitle:       in.Subtitle,
		Body:           in.Body,
		ImageReference: in.ImageReference,
		PublishDate:    in.PublishDate,
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func postURL(id int64) string { return "/post/" + strconv.FormatInt(id, 10) }
func editURL(id int64) string { return "/edit_post/" + strconv.FormatInt(id, 10) }
