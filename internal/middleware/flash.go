package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

// FlashCookieName carries a one-shot success message across a redirect.
const FlashCookieName = "tagdeck_flash"

// SetFlash stores msg for the next full page render. Used after plain form
// posts that answer with a redirect.
func SetFlash(c echo.Context, msg string) {
	c.SetCookie(&http.Cookie{
		Name:     FlashCookieName,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Flash moves a pending flash message from its cookie into the request
// context and clears the cookie. Only full page navigations consume it.
func Flash() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet || IsHTMX(c) || !strings.Contains(req.Header.Get("Accept"), "text/html") {
				return next(c)
			}

			cookie, err := req.Cookie(FlashCookieName)
			if err != nil || cookie.Value == "" {
				return next(c)
			}
			if msg, err := url.QueryUnescape(cookie.Value); err == nil {
				c.Set("flash_success", msg)
			}
			c.SetCookie(&http.Cookie{
				Name:   FlashCookieName,
				Path:   "/",
				MaxAge: -1,
			})
			return next(c)
		}
	}
}

// GetFlash returns the flash message for this request, or "".
func GetFlash(c echo.Context) string {
	msg, _ := c.Get("flash_success").(string)
	return msg
}
