package auth

import (
	"net/url"
	"strings"
)

// Page paths.
const (
	PathTop        = "/"
	PathSignUp     = "/sign_up"
	PathSignIn     = "/sign_in"
	PathCalendar   = "/calendar"
	PathTx         = "/transactions"
	PathSettings   = "/settings"
	PathCategories = "/settings/categories"
	PathBudget     = "/settings/budget"

	// ReturnToParam carries the originally requested path through sign-in.
	ReturnToParam = "redirect"
)

// Route is the auth requirement declared for a path.
type Route struct {
	RequiresAuth            bool
	RedirectIfAuthenticated bool
}

// Routes maps paths to declarations. Lookup tries the exact path, then the
// longest declared prefix ending at a segment boundary.
type Routes map[string]Route

// DefaultRoutes is the page table of the application.
func DefaultRoutes() Routes {
	return Routes{
		PathTop:        {RedirectIfAuthenticated: true},
		PathSignUp:     {RedirectIfAuthenticated: true},
		PathSignIn:     {RedirectIfAuthenticated: true},
		PathCalendar:   {RequiresAuth: true},
		PathTx:         {RequiresAuth: true},
		PathSettings:   {RequiresAuth: true},
		PathCategories: {RequiresAuth: true},
		PathBudget:     {RequiresAuth: true},
	}
}

// Lookup returns the declaration for path and whether one exists.
func (rs Routes) Lookup(path string) (Route, bool) {
	if r, ok := rs[path]; ok {
		return r, true
	}
	best := ""
	for prefix := range rs {
		// "/" would otherwise declare every page.
		if prefix == PathTop || len(prefix) <= len(best) {
			continue
		}
		if strings.HasPrefix(path, prefix+"/") {
			best = prefix
		}
	}
	if best == "" {
		return Route{}, false
	}
	return rs[best], true
}

// SignInURL is the sign-in page carrying returnTo as the return-to parameter.
func SignInURL(returnTo string) string {
	return PathSignIn + "?" + url.Values{ReturnToParam: {returnTo}}.Encode()
}

// SafeReturnTo returns target when it is a local absolute path, otherwise
// the calendar.
func SafeReturnTo(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return PathCalendar
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return PathCalendar
	}
	if u.Path == PathSignIn || u.Path == PathSignUp {
		return PathCalendar
	}
	return target
}
