package http

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetcal/internal/auth"
	"budgetcal/internal/core"
	"budgetcal/internal/events"
	"budgetcal/internal/forms"
	"budgetcal/internal/log"
	"budgetcal/internal/messages"
	"budgetcal/internal/navigation"
	"budgetcal/internal/session"
)

var transactionFields = []string{fieldType, fieldAmount, fieldCategoryID, fieldDate, fieldDescription}

type transactionsView struct {
	Month        core.Month
	MonthLabel   string
	Nav          navigation.Links
	Transactions []core.Transaction
	Categories   []core.Category
	Create       formView
	Edit         formView
}

// CategoriesOf returns the categories of type t, for the select of a form.
func (v transactionsView) CategoriesOf(t string) []core.Category {
	var out []core.Category
	for _, c := range v.Categories {
		if string(c.Type) == t {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	q := r.URL.Query()
	month := navigation.FromQuery(q, now)

	create := newFormView(auth.PathTx)
	create.Values[fieldType] = string(core.Expense)
	create.Values[fieldDate] = defaultDate(q.Get(fieldDate), month, now).Key()

	edit := formView{}
	if id, err := parseID(q.Get("edit")); err == nil {
		edit = newFormView(txPath(id))
		edit.EditID = id
	}
	s.showTransactions(w, r, http.StatusOK, month, create, edit)
}

// showTransactions renders the month's transactions with the given forms.
// An edit form without values is filled from the transaction it edits.
func (s *Server) showTransactions(w http.ResponseWriter, r *http.Request, status int, month core.Month, create, edit formView) {
	sess := mustSession(r)

	var (
		txs  []core.Transaction
		cats []core.Category
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		txs, err = sess.Queries.MonthTransactions(ctx, month)
		return err
	})
	g.Go(func() error {
		var err error
		cats, err = sess.Queries.Categories(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.loadFailed(w, r, err)
		return
	}

	inMonth := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if month.Contains(tx.Date) {
			inMonth = append(inMonth, tx)
		}
	}
	slices.SortStableFunc(inMonth, func(a, b core.Transaction) int {
		return b.Date.Compare(a.Date.Time)
	})

	if edit.EditID > 0 && len(edit.Values) == 0 {
		edit = s.prefillTransaction(edit, inMonth)
	}

	s.render(w, r, status, "transactions.html", month.Label(), transactionsView{
		Month:        month,
		MonthLabel:   month.Label(),
		Nav:          navigation.LinksFor(auth.PathTx, month, s.now()),
		Transactions: inMonth,
		Categories:   cats,
		Create:       create,
		Edit:         edit,
	})
}

func (s *Server) prefillTransaction(edit formView, txs []core.Transaction) formView {
	i := slices.IndexFunc(txs, func(tx core.Transaction) bool { return tx.ID == edit.EditID })
	if i < 0 {
		return formView{}
	}
	tx := txs[i]
	edit.Values = map[string]string{
		fieldType:        string(tx.Kind()),
		fieldAmount:      strconv.FormatInt(tx.Amount, 10),
		fieldCategoryID:  strconv.FormatInt(tx.CategoryID, 10),
		fieldDate:        tx.Date.Key(),
		fieldDescription: tx.Description,
	}
	return edit
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	form := postForm(r)

	in, err := s.readTransaction(r, sess, form)
	if err == nil {
		err = sess.API.CreateTransaction(r.Context(), in)
	}
	month := formMonth(form, navigation.Today(s.now()))
	if err != nil {
		s.logFormFailure(r, log.OpCreate, err)
		create := newFormView(auth.PathTx)
		create.Values = echoValues(form, transactionFields...)
		create.State = forms.Adapt(err, s.catalog(r))
		s.showTransactions(w, r, failureStatus(err), month, create, formView{})
		return
	}

	s.mutated(w, r, sess, events.ResourceTransaction, events.ActionCreated, 0,
		messages.NoticeTxCreated, navigation.Link(auth.PathTx, nil, core.MonthOf(in.Date.Time)))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	sess := mustSession(r)
	form := postForm(r)

	in, err := s.readTransaction(r, sess, form)
	if err == nil {
		err = sess.API.UpdateTransaction(r.Context(), id, in)
	}
	month := formMonth(form, navigation.Today(s.now()))
	if err != nil {
		s.logFormFailure(r, log.OpUpdate, err)
		edit := newFormView(txPath(id))
		edit.EditID = id
		edit.Values = echoValues(form, transactionFields...)
		edit.State = forms.Adapt(err, s.catalog(r))
		create := newFormView(auth.PathTx)
		create.Values[fieldType] = string(core.Expense)
		create.Values[fieldDate] = defaultDate("", month, s.now()).Key()
		s.showTransactions(w, r, failureStatus(err), month, create, edit)
		return
	}

	s.mutated(w, r, sess, events.ResourceTransaction, events.ActionUpdated, id,
		messages.NoticeTxUpdated, navigation.Link(auth.PathTx, nil, core.MonthOf(in.Date.Time)))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	sess := mustSession(r)
	month := formMonth(postForm(r), navigation.Today(s.now()))
	target := navigation.Link(auth.PathTx, nil, month)

	if err := sess.API.DeleteTransaction(r.Context(), id); err != nil {
		s.mutationFailed(w, r, sess, log.OpDelete, err, target)
		return
	}
	s.mutated(w, r, sess, events.ResourceTransaction, events.ActionDeleted, id, messages.NoticeTxDeleted, target)
}

// readTransaction parses the form and takes the type from the selected
// category, so a transaction always matches its category.
func (s *Server) readTransaction(r *http.Request, sess *session.Session, form url.Values) (core.TransactionInput, error) {
	in, err := parseTransactionForm(form)
	if err != nil {
		return in, err
	}
	cats, err := sess.Queries.Categories(r.Context())
	if err != nil {
		// The API checks the pair anyway.
		return in, nil
	}
	if i := slices.IndexFunc(cats, func(c core.Category) bool { return c.ID == in.CategoryID }); i >= 0 {
		in.Type = cats[i].Type
	}
	return in, nil
}

// defaultDate is the date a new transaction form starts with: the requested
// day when it lies in month, today when month is the current one, else the
// first of month.
func defaultDate(requested string, month core.Month, now time.Time) core.Date {
	if d, err := core.ParseDate(requested); err == nil && month.Contains(d) {
		return d
	}
	if today := core.DateOf(now); month.Contains(today) {
		return today
	}
	return month.FirstDay()
}

func txPath(id int64) string {
	return auth.PathTx + "/" + strconv.FormatInt(id, 10)
}
