package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/user"
)

// Token types
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const (
	contextTokenKey   = "userToken"
	contextUserKey    = "user"
	refreshCookieName = "refresh_token"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
	UserID    int    `json:"user_id"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	IsAdmin   bool   `json:"is_admin,omitempty"`
}

// TokenPair is what a successful login or registration hands out.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// GetUserClaims returns the claims of a tokenType token of usr, expiring per configuration.
func GetUserClaims(conf *core.Config, usr user.User, tokenType string) *Claims {
	now := time.Now()
	delta := conf.Server.JWTExpirationDelta
	if tokenType == TokenTypeRefresh {
		delta = conf.Server.JWTRefreshExpirationDelta
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.AppName,
			Subject:   strconv.Itoa(usr.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(delta)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TokenType: tokenType,
		UserID:    usr.ID,
		Username:  usr.Username,
		Email:     usr.Email,
		Role:      usr.RoleName(),
		IsAdmin:   usr.IsAdmin(),
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// GenerateTokenPair generates both the access and the refresh tokens of usr.
func GenerateTokenPair(conf *core.Config, usr user.User) (TokenPair, error) {
	access, err := GenerateToken(conf, GetUserClaims(conf, usr, TokenTypeAccess))
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := GenerateToken(conf, GetUserClaims(conf, usr, TokenTypeRefresh))
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// ParseToken verifies a signed token string and returns its claims.
func ParseToken(conf *core.Config, tokenStr string) (*Claims, error) {
	claims := new(Claims)
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(conf.SecretKey), nil }
	if _, err := jwt.ParseWithClaims(tokenStr, claims, keyFunc, jwt.WithValidMethods([]string{echojwt.AlgorithmHS256})); err != nil {
		return nil, err
	}
	return claims, nil
}

func jwtMiddleware(conf *core.Config) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: echojwt.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		NewClaimsFunc: func(echo.Context) jwt.Claims { return new(Claims) },
		ErrorHandler: func(echo.Context, error) error {
			return errUnauthorized
		},
	})
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

// userMiddleware loads the active User of an access token into the context.
func (s *Server) userMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		if claims.TokenType != TokenTypeAccess {
			return errUnauthorized
		}

		usr, err := s.UserSvc.GetByID(ctx.Request().Context(), claims.UserID)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return errUnauthorized
			}
			return errors.Wrap(err, "finding user by ID")
		}
		if !usr.IsActive {
			return errAccountDeactivated
		}
		ctx.Set(contextUserKey, usr)
		return next(ctx)
	}
}

func authenticate(ctx echo.Context, uname, pwd string, svc user.Service) (user.User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx.Request().Context(), uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	usr, err = svc.SetLastLogin(ctx.Request().Context(), usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

// refreshAccessToken issues a new access token from a valid refresh token of an active User.
func refreshAccessToken(ctx echo.Context, conf *core.Config, svc user.Service, refresh string) (string, error) {
	claims, err := ParseToken(conf, refresh)
	if err != nil || claims.TokenType != TokenTypeRefresh {
		return "", errInvalidRefreshToken
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.UserID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return "", errInvalidRefreshToken
		}
		return "", errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return "", errAccountDeactivated
	}

	token, err := GenerateToken(conf, GetUserClaims(conf, usr, TokenTypeAccess))
	return token, errors.Wrap(err, "generating token")
}

func setRefreshCookie(ctx echo.Context, conf *core.Config, token string) {
	ctx.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/api",
		MaxAge:   int(conf.Server.JWTRefreshExpirationDelta.Seconds()),
		HttpOnly: true,
		Secure:   conf.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
