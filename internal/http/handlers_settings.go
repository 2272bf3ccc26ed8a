package http

import (
	"net/http"
	"slices"
	"strconv"

	"golang.org/x/sync/errgroup"

	"budgetcal/internal/auth"
	"budgetcal/internal/core"
	"budgetcal/internal/events"
	"budgetcal/internal/forms"
	"budgetcal/internal/log"
	"budgetcal/internal/messages"
	"budgetcal/internal/navigation"
)

var (
	categoryFields = []string{fieldName, fieldColor, fieldType}
	budgetFields   = []string{fieldCategoryID, fieldAmount}
)

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "settings.html", "設定", nil)
}

type categoriesView struct {
	Income  []core.Category
	Expense []core.Category
	Create  formView
	Edit    formView
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	create := newFormView(auth.PathCategories)
	create.Values[fieldType] = string(core.Expense)

	edit := formView{}
	if id, err := parseID(r.URL.Query().Get("edit")); err == nil {
		edit = newFormView(categoryPath(id))
		edit.EditID = id
	}
	s.showCategories(w, r, http.StatusOK, create, edit)
}

func (s *Server) showCategories(w http.ResponseWriter, r *http.Request, status int, create, edit formView) {
	sess := mustSession(r)
	cats, err := sess.Queries.Categories(r.Context())
	if err != nil {
		s.loadFailed(w, r, err)
		return
	}

	view := categoriesView{Create: create, Edit: edit}
	for _, c := range cats {
		switch c.Type {
		case core.Income:
			view.Income = append(view.Income, c)
		default:
			view.Expense = append(view.Expense, c)
		}
	}
	if edit.EditID > 0 && len(edit.Values) == 0 {
		if i := slices.IndexFunc(cats, func(c core.Category) bool { return c.ID == edit.EditID }); i >= 0 {
			view.Edit.Values = map[string]string{
				fieldName:  cats[i].Name,
				fieldColor: cats[i].Color,
				fieldType:  string(cats[i].Type),
			}
		} else {
			view.Edit = formView{}
		}
	}
	s.render(w, r, status, "categories.html", "カテゴリ", view)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	form := postForm(r)

	in, err := parseCategoryForm(form, true)
	if err == nil {
		err = sess.API.CreateCategory(r.Context(), in)
	}
	if err != nil {
		s.logFormFailure(r, log.OpCreate, err)
		create := newFormView(auth.PathCategories)
		create.Values = echoValues(form, categoryFields...)
		create.State = forms.Adapt(err, s.catalog(r))
		s.showCategories(w, r, failureStatus(err), create, formView{})
		return
	}
	s.mutated(w, r, sess, events.ResourceCategory, events.ActionCreated, 0, messages.NoticeCategoryCreated, auth.PathCategories)
}

// handleUpdateCategory changes name and color. The type of a category is
// fixed once created.
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	sess := mustSession(r)
	form := postForm(r)

	in, err := parseCategoryForm(form, false)
	if err == nil {
		err = sess.API.UpdateCategory(r.Context(), id, in)
	}
	if err != nil {
		s.logFormFailure(r, log.OpUpdate, err)
		edit := newFormView(categoryPath(id))
		edit.EditID = id
		edit.Values = echoValues(form, categoryFields...)
		edit.State = forms.Adapt(err, s.catalog(r))
		create := newFormView(auth.PathCategories)
		create.Values[fieldType] = string(core.Expense)
		s.showCategories(w, r, failureStatus(err), create, edit)
		return
	}
	s.mutated(w, r, sess, events.ResourceCategory, events.ActionUpdated, id, messages.NoticeCategoryUpdated, auth.PathCategories)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	sess := mustSession(r)
	if err := sess.API.DeleteCategory(r.Context(), id); err != nil {
		s.mutationFailed(w, r, sess, log.OpDelete, err, auth.PathCategories)
		return
	}
	s.mutated(w, r, sess, events.ResourceCategory, events.ActionDeleted, id, messages.NoticeCategoryDeleted, auth.PathCategories)
}

type budgetsView struct {
	Month      core.Month
	MonthLabel string
	Nav        navigation.Links
	Budgets    []core.Budget
	// Categories are the expense categories a budget can be set for.
	Categories []core.Category
	Total      int64
	Create     formView
	Edit       formView
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	month := navigation.FromQuery(q, s.now())

	edit := formView{}
	if id, err := parseID(q.Get("edit")); err == nil {
		edit = newFormView(budgetPath(id))
		edit.EditID = id
	}
	s.showBudgets(w, r, http.StatusOK, month, newFormView(auth.PathBudget), edit)
}

func (s *Server) showBudgets(w http.ResponseWriter, r *http.Request, status int, month core.Month, create, edit formView) {
	sess := mustSession(r)

	var (
		budgets []core.Budget
		cats    []core.Category
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		budgets, err = sess.Queries.Budgets(ctx, month)
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

	view := budgetsView{
		Month:      month,
		MonthLabel: month.Label(),
		Nav:        navigation.LinksFor(auth.PathBudget, month, s.now()),
		Budgets:    budgets,
		Create:     create,
		Edit:       edit,
	}
	for _, c := range cats {
		if c.Type == core.Expense {
			view.Categories = append(view.Categories, c)
		}
	}
	for _, b := range budgets {
		view.Total += b.Amount
	}
	if edit.EditID > 0 && len(edit.Values) == 0 {
		if i := slices.IndexFunc(budgets, func(b core.Budget) bool { return b.ID == edit.EditID }); i >= 0 {
			view.Edit.Values = map[string]string{
				fieldCategoryID: strconv.FormatInt(budgets[i].CategoryID, 10),
				fieldAmount:     strconv.FormatInt(budgets[i].Amount, 10),
			}
		} else {
			view.Edit = formView{}
		}
	}
	s.render(w, r, status, "budget.html", "予算 "+month.Label(), view)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	form := postForm(r)
	month := formMonth(form, navigation.Today(s.now()))

	in, err := parseBudgetForm(form, month.String())
	if err == nil {
		err = sess.API.CreateBudget(r.Context(), in)
	}
	if err != nil {
		s.logFormFailure(r, log.OpCreate, err)
		create := newFormView(auth.PathBudget)
		create.Values = echoValues(form, budgetFields...)
		create.State = forms.Adapt(err, s.catalog(r))
		s.showBudgets(w, r, failureStatus(err), month, create, formView{})
		return
	}
	s.mutated(w, r, sess, events.ResourceBudget, events.ActionCreated, 0,
		messages.NoticeBudgetCreated, navigation.Link(auth.PathBudget, nil, month))
}

// handleUpdateBudget changes category and amount; a budget stays in the
// month it was created for.
func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	sess := mustSession(r)
	form := postForm(r)
	month := formMonth(form, navigation.Today(s.now()))

	in, err := parseBudgetForm(form, "")
	if err == nil {
		err = sess.API.UpdateBudget(r.Context(), id, in)
	}
	if err != nil {
		s.logFormFailure(r, log.OpUpdate, err)
		edit := newFormView(budgetPath(id))
		edit.EditID = id
		edit.Values = echoValues(form, budgetFields...)
		edit.State = forms.Adapt(err, s.catalog(r))
		s.showBudgets(w, r, failureStatus(err), month, newFormView(auth.PathBudget), edit)
		return
	}
	s.mutated(w, r, sess, events.ResourceBudget, events.ActionUpdated, id,
		messages.NoticeBudgetUpdated, navigation.Link(auth.PathBudget, nil, month))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	sess := mustSession(r)
	target := navigation.Link(auth.PathBudget, nil, formMonth(postForm(r), navigation.Today(s.now())))

	if err := sess.API.DeleteBudget(r.Context(), id); err != nil {
		s.mutationFailed(w, r, sess, log.OpDelete, err, target)
		return
	}
	s.mutated(w, r, sess, events.ResourceBudget, events.ActionDeleted, id, messages.NoticeBudgetDeleted, target)
}

func categoryPath(id int64) string {
	return auth.PathCategories + "/" + strconv.FormatInt(id, 10)
}

func budgetPath(id int64) string {
	return auth.PathBudget + "/" + strconv.FormatInt(id, 10)
}
