package service

import (
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/haatos/simple-cd/internal"
	"github.com/haatos/simple-cd/internal/settings"
	"github.com/labstack/echo/v4"
)

type CookieService struct {
	s *securecookie.SecureCookie
}

func NewCookieService(hashKey, blockKey []byte) *CookieService {
	return &CookieService{
		s: securecookie.New(hashKey, blockKey),
	}
}

func (cs *CookieService) GetSessionID(c echo.Context) (string, error) {
	cookie, err := c.Cookie(internal.SessionCookie)
	if err != nil {
		return "", err
	}
	values := make(map[string]string)
	if err := cs.s.Decode(internal.SessionCookie, cookie.Value, &values); err != nil {
		return "", err
	}
	return values["session_id"], nil
}

func (cs *CookieService) SetSessionCookie(c echo.Context, sessionID string) error {
	encoded, err := cs.s.Encode(internal.SessionCookie, map[string]string{"session_id": sessionID})
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     internal.SessionCookie,
		Value:    encoded,
		Path:     "/",
		Secure:   settings.Settings.Domain != "localhost",
		HttpOnly: true,
		Expires:  time.Now().UTC().Add(settings.Settings.SessionExpires),
		Domain:   settings.Settings.Domain,
	})
	return nil
}

func (cs *CookieService) RemoveSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     internal.SessionCookie,
		Value:    "",
		Path:     "/",
		Secure:   settings.Settings.Domain != "localhost",
		HttpOnly: true,
		Expires:  time.Now().UTC(),
		Domain:   settings.Settings.Domain,
	})
}
