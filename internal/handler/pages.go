package handler

import (
	"net/http"

	"github.com/msomdec/quill/internal/view"
)

// HandleAbout renders the about page.
func HandleAbout(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, view.AboutPage(baseData(w, r)))
}

// HandleContact renders the contact page.
func HandleContact(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, view.ContactPage(baseData(w, r)))
}

// HandleNotFound renders the 404 page for unmatched routes.
func HandleNotFound(w http.ResponseWriter, r *http.Request) {
	notFound(w, r)
}
