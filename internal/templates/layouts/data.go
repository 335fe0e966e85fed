// data.go provides typed context helpers for passing layout data from
// handlers/middleware to Templ components. This avoids importing handler
// types in the layouts package; only simple types are stored.
//
// Data flow: Handler/Middleware -> Echo Context -> LayoutInjector -> Go Context -> Templ
package layouts

import "context"

// ctxKey is a private type for context keys to prevent collisions.
type ctxKey string

const (
	keyCSRFToken    ctxKey = "layout_csrf_token"
	keyFlashSuccess ctxKey = "layout_flash_success"
	keyActivePath   ctxKey = "layout_active_path"
	keyAppName      ctxKey = "layout_app_name"
)

// DefaultAppName is shown in the page title when none is set.
const DefaultAppName = "Tagdeck"

// --- Setters (called by the layout injector in app/app.go) ---

// SetCSRFToken stores the CSRF token for forms.
func SetCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, keyCSRFToken, token)
}

// SetFlashSuccess stores a success flash message for the current render.
func SetFlashSuccess(ctx context.Context, msg string) context.Context {
	return context.WithValue(ctx, keyFlashSuccess, msg)
}

// SetActivePath stores the current request path for nav highlighting.
func SetActivePath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, keyActivePath, path)
}

// SetAppName stores the application name shown in titles.
func SetAppName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyAppName, name)
}

// --- Getters (called by Templ components) ---

// GetCSRFToken returns the CSRF token, or "".
func GetCSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(keyCSRFToken).(string)
	return token
}

// GetFlashSuccess returns a success flash message, or "".
func GetFlashSuccess(ctx context.Context) string {
	msg, _ := ctx.Value(keyFlashSuccess).(string)
	return msg
}

// GetActivePath returns the current request path for nav highlighting.
func GetActivePath(ctx context.Context) string {
	path, _ := ctx.Value(keyActivePath).(string)
	return path
}

// GetAppName returns the application name, or DefaultAppName.
func GetAppName(ctx context.Context) string {
	if name, _ := ctx.Value(keyAppName).(string); name != "" {
		return name
	}
	return DefaultAppName
}

// Data is the snapshot of layout values the page templates read.
type Data struct {
	AppName      string
	CSRFToken    string
	FlashSuccess string
	ActivePath   string
}

// FromContext collects every layout value from ctx.
func FromContext(ctx context.Context) Data {
	return Data{
		AppName:      GetAppName(ctx),
		CSRFToken:    GetCSRFToken(ctx),
		FlashSuccess: GetFlashSuccess(ctx),
		ActivePath:   GetActivePath(ctx),
	}
}
