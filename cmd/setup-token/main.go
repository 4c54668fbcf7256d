// Command setup-token stores the chat bot token in the OS keyring so it
// never lives in a config file. The token is read from the first argument,
// or from stdin when no argument is given.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/bilbot/bilbot/internal/common"
)

func main() {
	token := ""
	if len(os.Args) > 1 {
		token = strings.TrimSpace(os.Args[1])
	} else {
		fmt.Fprint(os.Stderr, "bot token: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintf(os.Stderr, "read token: %v\n", err)
			os.Exit(1)
		}
		token = strings.TrimSpace(line)
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "usage: setup-token [<token>]  (or pipe the token on stdin)")
		os.Exit(2)
	}

	if err := common.StoreBotToken(token); err != nil {
		fmt.Fprintf(os.Stderr, "store token: %v\n", err)
		os.Exit(1)
	}

	host, _ := os.Hostname()
	fmt.Printf("token stored in keyring for host %q\n", host)
}
