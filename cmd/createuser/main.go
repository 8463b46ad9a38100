package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/credential-service-api/internal/security"
	"github.com/makkenzo/credential-service-api/internal/service"
	"github.com/makkenzo/credential-service-api/internal/storage/postgres"
	"github.com/makkenzo/credential-service-api/internal/tasks"
	"go.uber.org/zap"

	"github.com/hibiken/asynq"
)

// Seeds a user and prints its issued api key. Useful for bootstrapping
// an environment without going through the HTTP surface.
func main() {
	email := flag.String("email", "", "Email of the user to create")
	password := flag.String("password", "", "Password of the user to create")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("Both -email and -password are required")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	salt := os.Getenv("APIKEY_SALT")
	keygen, err := security.NewKeyGenerator(salt, os.Getenv("APIKEY_PREFIX"))
	if err != nil {
		log.Fatalf("Failed to construct key generator: %v", err)
	}

	zapLogger, _ := zap.NewDevelopment()
	defer zapLogger.Sync()

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	userRepo := postgres.NewUserRepository(pool, zapLogger)
	keyRepo := postgres.NewAPIKeyRepository(pool, zapLogger)

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	scheduler := tasks.NewAsynqScheduler(asynq.RedisClientOpt{Addr: redisAddr}, zapLogger)
	defer scheduler.Close()

	hasher := security.NewPasswordHasher(0)
	authService := service.NewAuthService(userRepo, hasher, zapLogger)
	keyService := service.NewAPIKeyService(keyRepo, userRepo, authService, keygen, scheduler, 0, zapLogger)

	created, err := authService.Register(context.Background(), *email, *password)
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	key, err := keyService.IssueOrFetch(context.Background(), created.ID)
	if err != nil {
		log.Fatalf("Failed to issue api key: %v", err)
	}

	fmt.Printf("User created with ID: %d\n", created.ID)
	fmt.Printf("Generated API Key (SAVE THIS securely!):\n%s\n", key)
}
