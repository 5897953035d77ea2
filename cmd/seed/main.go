// Command seed upserts a profile for a user and prints a bearer token for it,
// so the protected post routes can be exercised without the user service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/theleywin/posts-api/src/lib"
	"github.com/theleywin/posts-api/src/models"
	"github.com/theleywin/posts-api/src/store"
)

func main() {
	userID := flag.String("user", "", "user id to seed (random when empty)")
	handle := flag.String("handle", "", "profile handle")
	name := flag.String("name", "", "display name carried in the token")
	avatar := flag.String("avatar", "", "avatar URL carried in the token")
	flag.Parse()

	cfg, err := lib.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *userID == "" {
		*userID = uuid.NewString()
	}
	if *handle == "" {
		*handle = *userID
	}

	ctx := context.Background()
	db, err := lib.ConnectDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	token, seedErr := seed(ctx, db, cfg, models.Identity{ID: *userID, Name: *name, Avatar: *avatar}, *handle)

	closeCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	if err := db.Close(closeCtx); err != nil {
		log.Printf("Error closing database: %v", err)
	}
	cancel()

	if seedErr != nil {
		log.Fatalf("Seeding failed: %v", seedErr)
	}
	fmt.Fprintf(os.Stdout, "user:  %s\ntoken: Bearer %s\n", *userID, token)
}

// seed upserts the profile for identity and signs a token for it.
func seed(ctx context.Context, db store.ProfileStore, cfg lib.Config, identity models.Identity, handle string) (string, error) {
	if err := db.UpsertProfile(ctx, &models.Profile{User: identity.ID, Handle: handle}); err != nil {
		return "", fmt.Errorf("seed profile: %w", err)
	}

	token, err := lib.GenerateJWT(cfg.JWTSecret, identity, cfg.JWTTTL)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
