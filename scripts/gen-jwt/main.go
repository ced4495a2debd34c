// Gen-jwt prints an HS256 token for the task API. Use it as AUTH_TOKEN.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"tasksync/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	subject := flag.String("sub", "test-user", "user id the token authenticates")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	config.LoadEnvFile(".env")
	secret := config.Load().JWTSecret
	if secret == "" {
		secret = "change-me"
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   *subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Sign failed:", err)
		os.Exit(1)
	}

	fmt.Println(signed)
}
