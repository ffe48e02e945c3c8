package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ErlanBelekov/account-service/internal/domain"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// CookieConfig max-ages must equal the codec's token lifetimes so a cookie
// never outlives or underlives its token.
type CookieConfig struct {
	Secure     bool
	Domain     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (cc CookieConfig) set(c *gin.Context, pair *domain.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, pair.AccessToken, int(cc.AccessTTL/time.Second), "/", cc.Domain, cc.Secure, true)
	c.SetCookie(RefreshTokenCookie, pair.RefreshToken, int(cc.RefreshTTL/time.Second), "/", cc.Domain, cc.Secure, true)
}

func (cc CookieConfig) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, "", -1, "/", cc.Domain, cc.Secure, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", cc.Domain, cc.Secure, true)
}
