// Command devtoken prints a signed access token for local testing.  In
// production tokens are issued by the barangay identity service.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/iliyamo/barangay-rewards/internal/config"
	"github.com/iliyamo/barangay-rewards/internal/middleware"
	"github.com/iliyamo/barangay-rewards/internal/utils"
)

func main() {
	resident := flag.Int64("resident", 1, "resident id placed in the sub claim")
	role := flag.String("role", middleware.RoleResident, "RESIDENT or ADMIN")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
	tok, err := utils.NewAccessToken(cfg.JWTSecret, *resident, strings.ToUpper(*role), *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
