package http

import (
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"budgetcal/internal/auth"
	"budgetcal/internal/calendar"
	"budgetcal/internal/core"
	"budgetcal/internal/messages"
	"budgetcal/internal/navigation"
)

type calendarView struct {
	View     calendar.MonthView
	Nav      navigation.Links
	Selected core.Date
	// DayTransactions are those of Selected.
	DayTransactions []core.Transaction
	NoBudget        string
	NewTxLink       string
}

// DayLink is the calendar URL selecting day d.
func (v calendarView) DayLink(d calendar.Day) string {
	return navigation.Link(auth.PathCalendar, url.Values{"date": {d.Key}}, v.View.Month)
}

// IsSelected reports whether d is the selected day.
func (v calendarView) IsSelected(d calendar.Day) bool {
	return !v.Selected.IsZero() && d.Key == v.Selected.Key()
}

// handleCalendar shows one month. Transactions and budgets load in parallel;
// the neighbouring months are warmed in the background afterwards.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	now := s.now()
	q := r.URL.Query()
	month := navigation.FromQuery(q, now)

	var (
		txs     []core.Transaction
		budgets []core.Budget
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		txs, err = sess.Queries.MonthTransactions(ctx, month)
		return err
	})
	g.Go(func() error {
		var err error
		budgets, err = sess.Queries.Budgets(ctx, month)
		return err
	})
	if err := g.Wait(); err != nil {
		s.loadFailed(w, r, err)
		return
	}

	prev, next := navigation.Adjacent(month)
	sess.Queries.PrefetchMonth(prev)
	sess.Queries.PrefetchMonth(next)

	catalog := s.catalog(r)
	agg := &calendar.Aggregator{
		Now:             s.now,
		UnknownCategory: catalog.Text(messages.LabelUnknownCategory),
	}
	view := calendarView{
		View:     agg.Build(month.FirstDay(), txs, budgets),
		Nav:      navigation.LinksFor(auth.PathCalendar, month, now),
		NoBudget: catalog.Text(messages.LabelNoBudget),
	}

	// The selected day defaults to today while today's month is shown.
	if d, err := core.ParseDate(q.Get("date")); err == nil && month.Contains(d) {
		view.Selected = d
	} else if today := core.DateOf(now); month.Contains(today) {
		view.Selected = today
	}
	if !view.Selected.IsZero() {
		view.DayTransactions = view.View.TransactionsForDate(view.Selected.Key())
		view.NewTxLink = navigation.Link(auth.PathTx, url.Values{"date": {view.Selected.Key()}}, month)
	} else {
		view.NewTxLink = navigation.Link(auth.PathTx, nil, month)
	}

	s.render(w, r, http.StatusOK, "calendar.html", view.View.MonthLabel, view)
}
