package http

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"slices"
	"strings"

	"budgetcal/internal/api"
	"budgetcal/internal/auth"
	"budgetcal/internal/calendar"
	"budgetcal/internal/core"
	"budgetcal/internal/forms"
	"budgetcal/internal/log"
	"budgetcal/internal/messages"
	"budgetcal/internal/session"
)

const layoutTemplate = "templates/layout.html"

var templateFuncs = template.FuncMap{
	"compact": calendar.CompactAmount,
	"deref": func(p *int64) int64 {
		if p == nil {
			return 0
		}
		return *p
	},
	"negative": func(v int64) bool { return v < 0 },
	"dayLabel": func(d core.Date) string {
		return fmt.Sprintf("%d月%d日", int(d.Month()), d.Day())
	},
	"typeLabel": func(t core.CategoryType) string {
		switch t {
		case core.Income:
			return "収入"
		case core.Expense:
			return "支出"
		}
		return ""
	},
	"formArgs": func(form formView, view any, token, submit string) formPartial {
		return formPartial{Form: form, View: view, Token: token, Submit: submit}
	},
	"listArgs": func(items []core.Category, view any, token string) categoryList {
		return categoryList{Items: items, View: view, Token: token}
	},
}

// formPartial is the data of a form template shared by the create and edit
// forms of a page.
type formPartial struct {
	Form   formView
	View   any
	Token  string
	Submit string
}

type categoryList struct {
	Items []core.Category
	View  any
	Token string
}

// parsePages builds one template set per page, each made of the layout and
// the page's own file, so every page can define its own "content" block.
func parsePages(fsys fs.FS) (map[string]*template.Template, error) {
	files, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == layoutTemplate {
			continue
		}
		name := path.Base(file)
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(fsys, layoutTemplate, file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		pages[name] = t
	}
	if len(pages) == 0 {
		return nil, errors.New("no page templates found")
	}
	return pages, nil
}

// pageData is what the layout sees; Content is the page's own view model.
type pageData struct {
	Title     string
	Path      string
	Lang      string
	SignedIn  bool
	FormToken string
	Flash     *session.Flash
	Catalog   *messages.Catalog
	Content   any
}

// formView is a form as it is rendered again: the submitted values and the
// errors the adapter derived from a failure.
type formView struct {
	Action string
	EditID int64
	Values map[string]string
	State  forms.State
}

func newFormView(action string) formView {
	return formView{Action: action, Values: map[string]string{}}
}

// Value returns the submitted value of field.
func (f formView) Value(field string) string {
	return f.Values[field]
}

func (s *Server) catalog(r *http.Request) *messages.Catalog {
	return messages.FromAcceptLanguage(r.Header.Get("Accept-Language"), s.locale)
}

// render executes page into a buffer first so a template error never sends
// half a page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page, title string, content any) {
	t, ok := s.pages[page]
	if !ok {
		s.logger.ErrorContext(r.Context(), "Unknown page template", "template", page)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	catalog := s.catalog(r)
	data := pageData{
		Title:   title,
		Path:    r.URL.Path,
		Lang:    catalog.Language().String(),
		Catalog: catalog,
		Content: content,
	}
	if ac, ok := auth.FromContext(r.Context()); ok {
		data.SignedIn = ac.IsSignedIn
	}
	if sess, ok := session.FromContext(r.Context()); ok {
		data.FormToken = sess.FormToken()
		if f, ok := sess.PopFlash(); ok {
			data.Flash = &f
		}
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.sl.LogError(r.Context(), "Template execution failed", err, log.ComponentTemplate, log.OpRender,
			log.LogFields{"template": page})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type errorView struct {
	Status  int
	Heading string
	Message string
	Retry   string
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.render(w, r, status, "error.html", http.StatusText(status), errorView{
		Status:  status,
		Heading: http.StatusText(status),
		Message: message,
	})
}

// renderUndetermined answers when the sign-in state could not be resolved.
// The visitor is not treated as signed out; they are asked to retry.
func (s *Server) renderUndetermined(w http.ResponseWriter, r *http.Request, err error) {
	s.renderConnectionError(w, r)
}

func (s *Server) renderConnectionError(w http.ResponseWriter, r *http.Request) {
	catalog := s.catalog(r)
	retry := ""
	if r.Method == http.MethodGet {
		retry = r.URL.RequestURI()
	}
	s.render(w, r, http.StatusServiceUnavailable, "error.html", catalog.Text(messages.LabelConnectionTrouble), errorView{
		Status:  http.StatusServiceUnavailable,
		Heading: catalog.Text(messages.LabelConnectionTrouble),
		Message: catalog.Text(messages.CodeConnectionError),
		Retry:   retry,
	})
}

// rejectForm answers a post whose form token does not match the session,
// most often because the session expired while the form was open.
func (s *Server) rejectForm(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Form token rejected",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	s.renderError(w, r, http.StatusForbidden, s.catalog(r).Text(messages.NoticeSessionExpired))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound, s.catalog(r).Text(messages.LabelNotFound))
}

// loadFailed renders a failed page read. A 401 means the backend session
// ended, so the visitor signs in again and comes back here.
func (s *Server) loadFailed(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case api.StatusOf(err) == http.StatusUnauthorized:
		http.Redirect(w, r, auth.SignInURL(r.URL.RequestURI()), http.StatusSeeOther)
	case api.StatusOf(err) == 0:
		log.FromContext(r.Context()).WarnContext(r.Context(), "Budget API unreachable",
			log.FieldPath, r.URL.Path,
			log.FieldError, err.Error())
		s.renderConnectionError(w, r)
	default:
		s.sl.LogError(r.Context(), "Page data load failed", err, log.ComponentHTTP, log.OpRead,
			log.LogFields{log.FieldPath: r.URL.Path})
		var apiErr *api.APIError
		errors.As(err, &apiErr)
		s.renderError(w, r, http.StatusBadGateway, s.catalog(r).Text(apiErr.Reason()))
	}
}

// failureStatus is the status a form is rendered again with.
func failureStatus(err error) int {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity
	}
	switch status := api.StatusOf(err); {
	case status == 0:
		return http.StatusServiceUnavailable
	case status >= 500:
		return http.StatusBadGateway
	default:
		return status
	}
}

// flashText joins what a failed mutation would show in a form, for actions
// such as delete that have no form to render it in.
func flashText(st forms.State) string {
	if st.Message != "" {
		return st.Message
	}
	parts := make([]string, 0, len(st.FieldErrors))
	for _, msg := range st.FieldErrors {
		parts = append(parts, msg)
	}
	slices.Sort(parts)
	return strings.Join(parts, " ")
}
