package http

import (
	"net/http"

	"budgetcal/internal/events"
	"budgetcal/internal/forms"
	"budgetcal/internal/log"
	"budgetcal/internal/query"
	"budgetcal/internal/session"
)

// invalidates lists the cached resources a change to resource makes stale.
// Transactions and budgets embed their category, so category changes drop
// everything.
var invalidates = map[string][]string{
	events.ResourceTransaction: {query.PrefixTransactions},
	events.ResourceBudget:      {query.PrefixBudgets},
	events.ResourceCategory:    {query.PrefixCategories, query.PrefixTransactions, query.PrefixBudgets},
}

var operations = map[string]string{
	events.ActionCreated: log.OpCreate,
	events.ActionUpdated: log.OpUpdate,
	events.ActionDeleted: log.OpDelete,
}

// mutated finishes a successful change: stale queries are dropped, the event
// is published, the notice is flashed and the browser is sent to target.
func (s *Server) mutated(w http.ResponseWriter, r *http.Request, sess *session.Session, resource, action string, id int64, notice, target string) {
	for _, prefix := range invalidates[resource] {
		sess.Queries.Invalidate(prefix)
	}
	s.events.Emit(resource, action, id)
	s.sl.LogMutation(r.Context(), operations[action], resource, id)
	sess.SetFlash(session.FlashSuccess, s.catalog(r).Text(notice))
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// mutationFailed handles a failed change that has no form to show the error
// in: the message is flashed and the browser goes back to target.
func (s *Server) mutationFailed(w http.ResponseWriter, r *http.Request, sess *session.Session, op string, err error, target string) {
	s.logFormFailure(r, op, err)
	sess.SetFlash(session.FlashError, flashText(forms.Adapt(err, s.catalog(r))))
	http.Redirect(w, r, target, http.StatusSeeOther)
}
