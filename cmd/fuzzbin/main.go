package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"

	"github.com/asotbz/Fuzzbin-sub000/pkg/client"
	pkgconfig "github.com/asotbz/Fuzzbin-sub000/pkg/config"
	"github.com/asotbz/Fuzzbin-sub000/pkg/oidc"
	oidcapi "github.com/asotbz/Fuzzbin-sub000/pkg/oidc/api"
	"github.com/asotbz/Fuzzbin-sub000/pkg/ratelimit"
	"github.com/asotbz/Fuzzbin-sub000/pkg/tokengenerator"
)

type Config struct {
	OIDCConfig      pkgconfig.OIDCConfig
	JWTConfig       pkgconfig.JWTConfig
	DatabaseConfig  pkgconfig.DatabaseConfig
	RateLimitConfig pkgconfig.RateLimitConfig
}

// loadEnvFile loads environment variables from .env file if it exists
// Only sets variables that are not already set in the environment
func loadEnvFile() {
	execPath, err := os.Executable()
	if err != nil {
		slog.Error("Failed to get executable path", "error", err)
		return
	}

	envFile := filepath.Join(filepath.Dir(execPath), ".env")
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		cwd, err := os.Getwd()
		if err != nil {
			slog.Error("Failed to get current working directory", "error", err)
			return
		}
		envFile = filepath.Join(cwd, ".env")
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Info("No .env file found", "path", envFile)
		return
	}

	slog.Info("Loading configuration from .env file", "path", envFile)
	if err := godotenv.Load(envFile); err != nil {
		slog.Error("Failed to load .env file", "error", err, "path", envFile)
	}
}

// newBindingRepository selects the identity binding storage backend
func newBindingRepository(config *Config) (oidc.BindingRepository, error) {
	switch config.OIDCConfig.Storage {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), config.DatabaseConfig.ToDatabaseURL())
		if err != nil {
			return nil, err
		}
		repo := oidc.NewPostgresBindingRepository(pool)
		if _, err := pool.Exec(context.Background(), repo.Schema()); err != nil {
			return nil, err
		}
		return repo, nil
	case "inmem":
		return oidc.NewInMemBindingRepository(), nil
	default:
		return oidc.NewFileBindingRepository(config.OIDCConfig.DataDir)
	}
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	loadEnvFile()

	config := Config{}
	cleanenv.ReadEnv(&config)

	if !config.OIDCConfig.Enabled() {
		slog.Error("OIDC is not configured, set FUZZBIN_OIDC_ISSUER_URL")
		os.Exit(-1)
	}

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)

	accessExpiry, err := config.JWTConfig.ParseAccessTokenExpiry()
	if err != nil {
		slog.Error("Invalid access token expiry", "error", err)
		os.Exit(-1)
	}
	refreshExpiry, err := config.JWTConfig.ParseRefreshTokenExpiry()
	if err != nil {
		slog.Error("Invalid refresh token expiry", "error", err)
		os.Exit(-1)
	}

	tokenGenerator := tokengenerator.NewJwtTokenGenerator(
		config.JWTConfig.Secret,
		config.JWTConfig.Issuer,
		config.JWTConfig.Audience,
	)
	jwtService := tokengenerator.NewJwtService(
		tokenGenerator,
		tokengenerator.WithAccessTokenExpiry(accessExpiry),
		tokengenerator.WithRefreshTokenExpiry(refreshExpiry),
		tokengenerator.WithCookieSetter(&tokengenerator.BaseCookieSetter{
			Path:     "/",
			HttpOnly: config.JWTConfig.CookieHttpOnly,
			Secure:   config.JWTConfig.CookieSecure,
			SameSite: config.JWTConfig.CookieSameSite(),
		}),
	)

	bindings, err := newBindingRepository(&config)
	if err != nil {
		slog.Error("Failed to initialize binding storage", "error", err, "storage", config.OIDCConfig.Storage)
		os.Exit(-1)
	}

	transactionTTL, err := config.OIDCConfig.ParseTransactionTTL()
	if err != nil {
		slog.Error("Invalid transaction TTL", "error", err)
		os.Exit(-1)
	}

	authContext, err := oidc.GetOrCreate(oidc.Settings{
		Provider: oidc.Config{
			IssuerURL:    config.OIDCConfig.IssuerURL,
			ClientID:     config.OIDCConfig.ClientID,
			ClientSecret: config.OIDCConfig.ClientSecret,
			RedirectURI:  config.OIDCConfig.RedirectURI,
			Scopes:       config.OIDCConfig.ParseScopes(),
			Name:         config.OIDCConfig.ProviderName,
		},
		RequiredGroup:  config.OIDCConfig.RequiredGroup,
		GroupsClaim:    config.OIDCConfig.GroupsClaim,
		TransactionTTL: transactionTTL,
		Bindings:       bindings,
		Issuer:         oidcapi.NewJwtSessionIssuer(jwtService),
	})
	if err != nil {
		slog.Error("Failed to initialize OIDC", "error", err)
		os.Exit(-1)
	}

	oidcHandle := oidcapi.NewHandle(authContext.Flow, jwtService)

	// Public login endpoints, rate limited per client IP
	loginRouter := chi.NewRouter()
	if config.RateLimitConfig.Enabled {
		rateLimitMiddleware := ratelimit.NewMiddleware(&ratelimit.Config{
			Capacity:   config.RateLimitConfig.Capacity,
			RefillRate: config.RateLimitConfig.RefillRate,
			BucketTTL:  ratelimit.DefaultConfig().BucketTTL,
		})
		loginRouter.Use(rateLimitMiddleware.Handler)
	}
	loginRouter.Mount("/", oidcHandle.Routes())
	server.R.Mount("/api/auth/oidc", loginRouter)

	// Config endpoint requires a valid local session token
	tokenAuth := jwtauth.New("HS256", []byte(config.JWTConfig.Secret), nil)
	server.R.Group(func(r chi.Router) {
		r.Use(client.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))
		r.Use(client.AuthUserMiddleware)
		r.Get("/api/auth/oidc/config", oidcHandle.GetConfig)
	})

	slog.Info("OIDC login configured", "provider", authContext.Provider.Name())
	server.Run()
}
