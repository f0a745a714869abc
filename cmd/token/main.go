// Command token mints development credentials: an HS256 bearer token for an
// actor, and optionally the bcrypt hash for the approval second-factor code.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"

	"github.com/campusiq/opsconsole/internal/config"
	"github.com/campusiq/opsconsole/internal/service/approval"
)

func main() {
	sub := flag.String("sub", "", "actor id (required)")
	role := flag.String("role", "student", "actor role: student, faculty or admin")
	department := flag.String("department", "", "department id claim, for faculty")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	approvalCode := flag.String("approval-code", "", "also print the bcrypt hash for this approval code")
	flag.Parse()

	if *sub == "" {
		log.Fatal("-sub is required")
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	claims := jwt.MapClaims{
		"sub":  *sub,
		"role": *role,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(*ttl).Unix(),
	}
	if *department != "" {
		claims["department_id"] = *department
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Security.JWTSecret))
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)

	if *approvalCode != "" {
		hash, err := approval.HashCode(*approvalCode)
		if err != nil {
			log.Fatalf("Failed to hash approval code: %v", err)
		}
		fmt.Printf("OPS_APPROVAL_CODE_HASH=%s\n", hash)
	}
}
