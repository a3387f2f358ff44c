package app

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"horse.fit/sift/internal/auth"
)

// runHashToken needs no database; it only turns a plaintext token into the
// bcrypt hash SIFT_ADMIN_TOKEN_HASH expects.
func runHashToken(args []string) int {
	fs := flag.NewFlagSet("hash-token", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	token := fs.String("token", "", "Admin bearer token to hash")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	hash, err := auth.HashToken(*token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Hash failed: %v\n", err)
		return 2
	}

	fmt.Println(hash)
	return 0
}
