// Command staff-token mints a bearer token for a reception kiosk or the admin
// screen, signed with JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/iliyamo/waitlist-display/internal/config"
	"github.com/iliyamo/waitlist-display/internal/utils"
)

func main() {
	subject := flag.String("sub", "", "token subject, e.g. kiosk-1")
	role := flag.String("role", "RECEPTION", "RECEPTION or ADMIN")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	config.LoadDotEnv()
	tok, err := utils.NewStaffToken(os.Getenv("JWT_SECRET"), *subject, *role, *ttl, time.Now())
	if err != nil {
		log.Fatalf("staff-token: %v", err)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
}
