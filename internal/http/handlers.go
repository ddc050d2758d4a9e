package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

type expensePayload struct {
	ID          string `json:"id,omitempty"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	CategoryID  string `json:"categoryId"`
	Date        string `json:"date"`
}

type categoryPayload struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Colour string `json:"colour"`
}

type groupPayload struct {
	Category categoryPayload  `json:"category"`
	Total    string           `json:"total"`
	Count    int              `json:"count"`
	Expenses []expensePayload `json:"expenses"`
}

type bucketPayload struct {
	Label string `json:"label"`
	Total string `json:"total"`
}

func toExpensePayload(e core.Expense) expensePayload {
	return expensePayload{
		ID:          e.ID,
		Description: e.Description,
		Amount:      core.FormatAmount(e.Amount),
		CategoryID:  e.CategoryID,
		Date:        core.FormatDay(e.CreatedAt),
	}
}

func toCategoryPayload(c core.Category) categoryPayload {
	return categoryPayload{ID: c.ID, Name: c.Name, Colour: string(c.Colour)}
}

func toGroupPayload(g core.CategoryGroup) groupPayload {
	expenses := make([]expensePayload, 0, len(g.Expenses))
	for _, e := range g.Expenses {
		expenses = append(expenses, toExpensePayload(e))
	}
	return groupPayload{
		Category: toCategoryPayload(g.Category),
		Total:    core.FormatAmount(g.Total),
		Count:    g.Count,
		Expenses: expenses,
	}
}

// expenseFromPayload normalizes the raw amount and parses the calendar day.
// A missing date defaults to today.
func expenseFromPayload(p expensePayload) (core.Expense, error) {
	amount, err := core.ParseAmount(core.NormalizeAmount(p.Amount))
	if err != nil {
		return core.Expense{}, err
	}

	createdAt := core.Day(time.Now())
	if strings.TrimSpace(p.Date) != "" {
		createdAt, err = core.ParseDay(p.Date)
		if err != nil {
			return core.Expense{}, err
		}
	}

	return core.Expense{
		ID:          strings.TrimSpace(p.ID),
		Description: strings.TrimSpace(p.Description),
		Amount:      amount,
		CategoryID:  strings.TrimSpace(p.CategoryID),
		CreatedAt:   createdAt,
	}, nil
}

func parseSign(s string) (core.Sign, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return core.SignAny, nil
	case "expense":
		return core.SignExpense, nil
	case "income":
		return core.SignIncome, nil
	default:
		return core.SignAny, fmt.Errorf("unknown sign %q", s)
	}
}

// filterFromQuery overlays query parameters on top of the sticky filter
// state. Absent parameters keep the sticky value.
func (s *Server) filterFromQuery(r *http.Request) (core.Filter, error) {
	f := s.filter.Snapshot()
	q := r.URL.Query()

	if v := q.Get("sign"); v != "" {
		sign, err := parseSign(v)
		if err != nil {
			return core.Filter{}, fmt.Errorf("invalid sign %q", v)
		}
		f.Sign = sign
	}
	if v := q.Get("from"); v != "" {
		from, err := core.ParseDay(v)
		if err != nil {
			return core.Filter{}, err
		}
		f.From = from
	}
	if v := q.Get("to"); v != "" {
		to, err := core.ParseDay(v)
		if err != nil {
			return core.Filter{}, err
		}
		f.To = to
	}
	if v := q.Get("category"); v != "" {
		f.CategoryID = v
	}
	return f, nil
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		f, err := s.filterFromQuery(r)
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		expenses, err := s.repo.FindExpenses(r.Context(), f)
		if err != nil {
			respondStorageError(w, r, err)
			return
		}
		out := make([]expensePayload, 0, len(expenses))
		for _, e := range expenses {
			out = append(out, toExpensePayload(e))
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"expenses": out,
			"total":    core.FormatAmount(core.NetTotal(expenses)),
		})

	case http.MethodPost:
		var p expensePayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			respondError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		expense, err := expenseFromPayload(p)
		if err != nil {
			respondStorageError(w, r, err)
			return
		}
		id, err := s.service.CreateExpense(r.Context(), expense)
		if err != nil {
			respondStorageError(w, r, err)
			return
		}
		expense.ID = id
		respondJSON(w, http.StatusCreated, toExpensePayload(expense))

	default:
		w.Header().Set("Allow", "GET, POST")
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleExpenseByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/expenses/")
	if id == "" || strings.Contains(id, "/") {
		respondError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		expense, err := s.repo.FindExpense(r.Context(), id)
		if err != nil {
			respondStorageError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, toExpensePayload(expense))

	case http.MethodPut:
		var p expensePayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			respondError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		p.ID = id
		expense, err := expenseFromPayload(p)
		if err != nil {
			respondStorageError(w, r, err)
			return
		}
		if err := s.service.UpdateExpense(r.Context(), expense); err != nil {
			respondStorageError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, toExpensePayload(expense))

	case http.MethodDelete:
		if err := s.service.DeleteExpense(r.Context(), id); err != nil {
			respondStorageError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleGroupedExpenses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	f, err := s.filterFromQuery(r)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if f.CategoryID != "" {
		// Narrowing to one category always yields a group, even an empty
		// shell, so the category view has something to render.
		if _, err := s.store.RefreshOneCategoryGroup(r.Context(), f, f.CategoryID); err != nil {
			respondStorageError(w, r, err)
			return
		}
	} else if err := s.store.RefreshGrouped(r.Context(), f); err != nil {
		respondStorageError(w, r, err)
		return
	}

	groups := s.store.Grouped()
	out := make([]groupPayload, 0, len(groups))
	for _, g := range groups {
		out = append(out, toGroupPayload(g))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"groups":      out,
		"totalAmount": core.FormatAmount(s.store.TotalAmount()),
	})
}

// handleGroupedCategories lists every category with its matching expenses
// and total. Unlike the grouped expense view, categories with nothing in
// range still appear as empty shells and the sign filter does not apply:
// this is the management view, where hiding a category would look like
// data loss.
func (s *Server) handleGroupedCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	f, err := s.filterFromQuery(r)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	f.Sign = core.SignAny
	f.CategoryID = ""

	categories, err := s.repo.FindCategories(r.Context())
	if err != nil {
		respondStorageError(w, r, err)
		return
	}
	expenses, err := s.repo.FindExpenses(r.Context(), f)
	if err != nil {
		respondStorageError(w, r, err)
		return
	}
	groups, err := core.GroupByCategory(expenses, categories, f)
	if err != nil {
		respondStorageError(w, r, err)
		return
	}

	byID := make(map[string]core.CategoryGroup, len(groups))
	for _, g := range groups {
		byID[g.Category.ID] = g
	}

	out := make([]groupPayload, 0, len(categories))
	for _, c := range categories {
		g, ok := byID[c.ID]
		if !ok {
			g = core.CategoryGroup{Category: c, Total: decimal.Zero, Expenses: []core.Expense{}}
		}
		out = append(out, toGroupPayload(g))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Category.Name < out[j].Category.Name
	})
	respondJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		categories, err := s.repo.FindCategories(r.Context())
		if err != nil {
			respondStorageError(w, r, err)
			return
		}
		out := make([]categoryPayload, 0, len(categories))
		for _, c := range categories {
			out = append(out, toCategoryPayload(c))
		}
		respondJSON(w, http.StatusOK, map[string]any{"categories": out})

	case http.MethodPost:
		var p categoryPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			respondError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		colour, err := core.ParseColour(p.Colour)
		if err != nil {
			respondStorageError(w, r, err)
			return
		}
		category := core.Category{Name: strings.TrimSpace(p.Name), Colour: colour}
		id, err := s.service.CreateCategory(r.Context(), category)
		if err != nil {
			respondStorageError(w, r, err)
			return
		}
		category.ID = id
		respondJSON(w, http.StatusCreated, toCategoryPayload(category))

	default:
		w.Header().Set("Allow", "GET, POST")
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleCategoryByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/categories/")
	if id == "" || strings.Contains(id, "/") {
		respondError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		category, err := s.repo.FindCategory(r.Context(), id)
		if err != nil {
			respondStorageError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, toCategoryPayload(category))

	case http.MethodPut:
		var p categoryPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			respondError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		colour, err := core.ParseColour(p.Colour)
		if err != nil {
			respondStorageError(w, r, err)
			return
		}
		category := core.Category{ID: id, Name: strings.TrimSpace(p.Name), Colour: colour}
		if err := s.service.UpdateCategory(r.Context(), category); err != nil {
			respondStorageError(w, r, err)
			return
		}
		s.store.InvalidateCategory(id)
		respondJSON(w, http.StatusOK, toCategoryPayload(category))

	case http.MethodDelete:
		if err := s.service.DeleteCategory(r.Context(), id); err != nil {
			respondStorageError(w, r, err)
			return
		}
		s.store.InvalidateCategory(id)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleBuckets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	var kind core.BucketKind
	switch q.Get("kind") {
	case "day-of-week":
		kind = core.BucketDayOfWeek
	case "week-of-month":
		kind = core.BucketWeekOfMonth
	case "month-of-year":
		kind = core.BucketMonthOfYear
	default:
		respondError(w, http.StatusUnprocessableEntity, "kind must be one of day-of-week, week-of-month, month-of-year")
		return
	}

	ref := core.Day(time.Now())
	if v := q.Get("ref"); v != "" {
		var err error
		ref, err = core.ParseDay(v)
		if err != nil {
			respondStorageError(w, r, err)
			return
		}
	}

	f, err := s.filterFromQuery(r)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	expenses, err := s.repo.FindExpenses(r.Context(), f)
	if err != nil {
		respondStorageError(w, r, err)
		return
	}

	buckets := core.GroupByTimeBucket(expenses, kind, ref)
	out := make([]bucketPayload, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, bucketPayload{Label: b.Label, Total: core.FormatAmount(b.Total)})
	}
	respondJSON(w, http.StatusOK, map[string]any{"buckets": out})
}

type filterPayload struct {
	Sign     string `json:"sign"`
	From     string `json:"from"`
	To       string `json:"to"`
	Category string `json:"category"`
}

// handleFilter reads or replaces the sticky filter applied to list and
// grouped reads when a request carries no explicit parameters.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		f := s.filter.Snapshot()
		p := filterPayload{Sign: f.Sign.String(), Category: f.CategoryID}
		if !f.From.IsZero() {
			p.From = core.FormatDay(f.From)
		}
		if !f.To.IsZero() {
			p.To = core.FormatDay(f.To)
		}
		respondJSON(w, http.StatusOK, p)

	case http.MethodPut:
		var p filterPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			respondError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		sign, err := parseSign(p.Sign)
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, "invalid sign")
			return
		}
		var from, to time.Time
		if strings.TrimSpace(p.From) != "" {
			if from, err = core.ParseDay(p.From); err != nil {
				respondStorageError(w, r, err)
				return
			}
		}
		if strings.TrimSpace(p.To) != "" {
			if to, err = core.ParseDay(p.To); err != nil {
				respondStorageError(w, r, err)
				return
			}
		}
		s.filter.SetSign(sign)
		s.filter.SetDateRange(from, to)
		s.filter.SetCategoryID(strings.TrimSpace(p.Category))
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, PUT")
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
