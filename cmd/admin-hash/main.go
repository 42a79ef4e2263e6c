// Command admin-hash prints an argon2id hash for ADMIN_API_KEY_HASH.
//
//	admin-hash <key>
//	echo -n <key> | admin-hash
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"stars-engine/internal/adminkey"
)

func main() {
	key, err := readKey()
	if err != nil {
		fmt.Fprintln(os.Stderr, "read key:", err)
		os.Exit(1)
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "usage: admin-hash <key>")
		os.Exit(2)
	}
	encoded, err := adminkey.Hash(key, adminkey.DefaultParams)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash key:", err)
		os.Exit(1)
	}
	fmt.Println(encoded)
}

func readKey() (string, error) {
	if len(os.Args) > 1 {
		return os.Args[1], nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
