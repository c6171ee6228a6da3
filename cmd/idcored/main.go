// Command idcored runs the identity engine behind an HTTP API. It is the
// deployment shell: configuration loading, store selection, and transport
// wiring live here; every security decision lives in the idcore package.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/veriden/idcore"
	"github.com/veriden/idcore/crypto"
	"github.com/veriden/idcore/stores/memory"
	"github.com/veriden/idcore/stores/postgres"
	"github.com/veriden/idcore/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "idcored:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("IDCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("listen", ":8080")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("token.access_ttl", "15m")
	v.SetDefault("token.refresh_ttl", "720h")
	v.SetDefault("token.issuer", "idcore")
	v.SetDefault("log.level", "info")

	v.SetConfigName("idcored")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/idcored")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}

	logger, err := buildLogger(v.GetString("log.level"))
	if err != nil {
		return err
	}
	defer logger.Sync()

	aesKey, err := base64.StdEncoding.DecodeString(v.GetString("crypto.aes_key"))
	if err != nil {
		return fmt.Errorf("decode IDCORE_CRYPTO_AES_KEY: %w", err)
	}

	var secrets token.SecretsProvider = token.StaticSecrets{
		Private: []byte(v.GetString("token.signing_key")),
		Chain:   []byte(v.GetString("audit.chain_key")),
	}
	signingKey, _, err := secrets.SigningKey()
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	chainKey, err := secrets.AuditChainKey()
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
	})
	defer redisClient.Close()

	cfg := idcore.DefaultConfig()
	cfg.Pin.Pepper = v.GetString("pin.pepper")
	cfg.Audit.ChainKey = chainKey

	issuer, err := token.NewIssuer(token.Config{
		SigningMethod: token.MethodHS256,
		PrivateKey:    signingKey,
		AccessTTL:     v.GetDuration("token.access_ttl"),
		RefreshTTL:    v.GetDuration("token.refresh_ttl"),
		Issuer:        v.GetString("token.issuer"),
	})
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}

	builder := idcore.NewBuilder().
		WithConfig(cfg).
		WithLogger(logger).
		WithRedis(redisClient).
		WithCrypto(crypto.Config{
			LookupSalt: v.GetString("crypto.lookup_salt"),
			AESKey:     aesKey,
		}).
		WithTokenIssuer(&issuerAdapter{issuer: issuer}).
		WithCodeSender(&logSender{logger: logger}).
		WithAuditSink(idcore.NewJSONWriterSink(os.Stdout))

	if dsn := v.GetString("postgres.dsn"); dsn != "" {
		store, err := postgres.New(context.Background(), dsn, logger)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer store.Close()
		builder.
			WithIdentityRepository(store.Identities()).
			WithOtpChallengeRepository(store.Challenges()).
			WithCredentialRepository(store.Credentials()).
			WithDeviceRepository(store.Devices()).
			WithRiskEventRepository(store.RiskEvents()).
			WithAuditLogRepository(store.AuditLog())
	} else {
		logger.Warn("no postgres dsn configured, using in-memory store")
		store := memory.New()
		builder.
			WithIdentityRepository(store.Identities()).
			WithOtpChallengeRepository(store.Challenges()).
			WithCredentialRepository(store.Credentials()).
			WithDeviceRepository(store.Devices()).
			WithRiskEventRepository(store.RiskEvents()).
			WithAuditLogRepository(store.AuditLog())
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:              v.GetString("listen"),
		Handler:           newRouter(engine, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return cfg.Build()
}
