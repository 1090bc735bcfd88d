package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/yazok8/linktree-clone/internal/auth"
	"github.com/yazok8/linktree-clone/internal/config"
	"github.com/yazok8/linktree-clone/internal/database"
	"github.com/yazok8/linktree-clone/internal/ids"
	"github.com/yazok8/linktree-clone/internal/links"
	"github.com/yazok8/linktree-clone/internal/logging"
	"github.com/yazok8/linktree-clone/internal/public"
	"github.com/yazok8/linktree-clone/internal/server"
	"github.com/yazok8/linktree-clone/internal/users"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "linktree-api",
		Short: "Link-in-bio pages backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")
	flags.String("http-address", defaults.GetString(config.KeyHTTPAddress), "HTTP listen address")
	flags.String("database-driver", defaults.GetString(config.KeyDatabaseDriver), "Database driver (sqlite, postgres)")
	flags.String("database-dsn", defaults.GetString(config.KeyDatabaseDSN), "Database DSN or SQLite file path")
	flags.String("signing-secret", "", "Session signing secret (overrides env)")
	flags.Duration("token-ttl", defaults.GetDuration(config.KeyTokenTTL), "Session token lifetime")
	flags.String("cookie-name", defaults.GetString(config.KeyCookieName), "Session cookie name")
	flags.Bool("cookie-secure", defaults.GetBool(config.KeyCookieSecure), "Mark the session cookie Secure")
	flags.String("cors-origins", defaults.GetString(config.KeyAllowedOrigins), "Comma separated list of allowed CORS origins")
	flags.String("log-level", defaults.GetString(config.KeyLogLevel), "Log level (debug, info, warn, error)")
	flags.String("log-format", defaults.GetString(config.KeyLogFormat), "Log format (json, console)")

	bindFlag(cmd, config.KeyHTTPAddress, "http-address")
	bindFlag(cmd, config.KeyDatabaseDriver, "database-driver")
	bindFlag(cmd, config.KeyDatabaseDSN, "database-dsn")
	bindFlag(cmd, config.KeySigningSecret, "signing-secret")
	bindFlag(cmd, config.KeyTokenTTL, "token-ttl")
	bindFlag(cmd, config.KeyCookieName, "cookie-name")
	bindFlag(cmd, config.KeyCookieSecure, "cookie-secure")
	bindFlag(cmd, config.KeyAllowedOrigins, "cors-origins")
	bindFlag(cmd, config.KeyLogLevel, "log-level")
	bindFlag(cmd, config.KeyLogFormat, "log-format")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if envFile != "" {
		// Existing environment variables win over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(appConfig.DatabaseDriver, appConfig.DatabaseDSN, logger)
	if err != nil {
		return err
	}
	defer database.Close(db) //nolint:errcheck

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.TokenIssuer,
		Audience:      appConfig.TokenAudience,
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}
	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.TokenIssuer,
		Audience:      appConfig.TokenAudience,
		CookieName:    appConfig.CookieName,
	})
	if err != nil {
		return err
	}

	idProvider := ids.NewUUIDProvider()
	userService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Hasher:     auth.NewPasswordService(0),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	linkService, err := links.NewService(links.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	publicService, err := public.NewService(public.Config{
		Users:  userService,
		Links:  linkService,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	metrics, err := server.NewMetrics()
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:       sessionValidator,
		Tokens:         issuer,
		Accounts:       userService,
		Links:          linkService,
		Public:         publicService,
		Metrics:        metrics,
		Readiness:      sqlDB.PingContext,
		AllowedOrigins: appConfig.AllowedOrigins,
		Cookie:         server.CookieSettings{Secure: appConfig.CookieSecure},
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress), zap.String("database_driver", appConfig.DatabaseDriver))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
