package http

import (
	"net/http"

	"budgetcal/internal/auth"
	"budgetcal/internal/forms"
	"budgetcal/internal/log"
	"budgetcal/internal/messages"
	"budgetcal/internal/session"
)

type credentialsView struct {
	Form     formView
	Redirect string
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "top.html", "家計簿カレンダー", nil)
}

func (s *Server) handleSignUpForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "sign_up.html", "会員登録", credentialsView{
		Form: newFormView(auth.PathSignUp),
	})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	creds, err := parseCredentials(postForm(r))
	if err == nil {
		err = sess.API.SignUp(r.Context(), creds)
	}
	if err != nil {
		s.logFormFailure(r, log.OpSignUp, err)
		view := credentialsView{Form: newFormView(auth.PathSignUp)}
		view.Form.Values = echoValues(postForm(r), fieldEmail)
		view.Form.State = forms.Adapt(err, s.catalog(r))
		s.render(w, r, failureStatus(err), "sign_up.html", "会員登録", view)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "User signed up", log.FieldOperation, log.OpSignUp)
	sess.SetFlash(session.FlashSuccess, s.catalog(r).Text(messages.NoticeSignedUp))
	http.Redirect(w, r, auth.PathSignIn, http.StatusSeeOther)
}

func (s *Server) handleSignInForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "sign_in.html", "ログイン", credentialsView{
		Form:     newFormView(auth.PathSignIn),
		Redirect: r.URL.Query().Get(auth.ReturnToParam),
	})
}

// handleSignIn signs in and sends the visitor where the gate originally
// stopped them. The auth cache is dropped so the next page sees the new
// state, and the session id is rotated.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	creds, err := parseCredentials(postForm(r))
	if err == nil {
		err = sess.API.SignIn(r.Context(), creds)
	}
	if err != nil {
		s.logFormFailure(r, log.OpSignIn, err)
		view := credentialsView{
			Form:     newFormView(auth.PathSignIn),
			Redirect: formValue(postForm(r), fieldRedirect),
		}
		view.Form.Values = echoValues(postForm(r), fieldEmail)
		view.Form.State = forms.Adapt(err, s.catalog(r))
		s.render(w, r, failureStatus(err), "sign_in.html", "ログイン", view)
		return
	}

	sess.Auth.Invalidate()
	sess.Queries.Cache().Clear()
	s.sessions.Rotate(w, sess)
	log.FromContext(r.Context()).InfoContext(r.Context(), "User signed in", log.FieldOperation, log.OpSignIn)
	sess.SetFlash(session.FlashSuccess, s.catalog(r).Text(messages.NoticeSignedIn))
	http.Redirect(w, r, auth.SafeReturnTo(formValue(postForm(r), fieldRedirect)), http.StatusSeeOther)
}

// handleSignOut forgets the user even when the API call fails; the backend
// session then simply expires on its own.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	if err := sess.API.SignOut(r.Context()); err != nil {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Sign-out request failed",
			log.FieldOperation, log.OpSignOut,
			log.FieldError, err.Error())
	}
	sess.Reset()
	sess.SetFlash(session.FlashSuccess, s.catalog(r).Text(messages.NoticeSignedOut))
	http.Redirect(w, r, auth.PathSignIn, http.StatusSeeOther)
}

// mustSession returns the session loaded by the page middleware.
func mustSession(r *http.Request) *session.Session {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		panic("http: handler reached without a session")
	}
	return sess
}

// logFormFailure logs a rejected submission. Validation and 4xx answers are
// the user's to fix and only logged at debug level.
func (s *Server) logFormFailure(r *http.Request, op string, err error) {
	logger := log.FromContext(r.Context())
	status := failureStatus(err)
	if status < 500 {
		logger.DebugContext(r.Context(), "Form rejected",
			log.FieldOperation, op,
			log.FieldStatusCode, status,
			log.FieldError, err.Error())
		return
	}
	logger.WarnContext(r.Context(), "Form submission failed",
		log.FieldOperation, op,
		log.FieldStatusCode, status,
		log.FieldError, err.Error())
}
