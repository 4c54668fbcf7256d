package common

import (
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const keyringService = "bilbot"

func openKeyring() (keyring.Keyring, error) {
	return keyring.Open(keyring.Config{
		ServiceName: keyringService,
	})
}

// BotToken retrieves the chat bot token. The BILBOT_TOKEN environment
// variable wins; otherwise the token is read from the OS keyring under the
// current hostname, the way setup-token stores it.
func BotToken() (string, error) {
	if tok := os.Getenv("BILBOT_TOKEN"); tok != "" {
		return tok, nil
	}

	ring, err := openKeyring()
	if err != nil {
		return "", fmt.Errorf("open keyring: %w", err)
	}
	host, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("hostname: %w", err)
	}
	item, err := ring.Get(host)
	if err != nil {
		return "", fmt.Errorf("no token stored for host %q: %w", host, err)
	}
	return string(item.Data), nil
}

// StoreBotToken writes the chat bot token into the OS keyring keyed by the
// current hostname.
func StoreBotToken(token string) error {
	ring, err := openKeyring()
	if err != nil {
		return fmt.Errorf("open keyring: %w", err)
	}
	host, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("hostname: %w", err)
	}
	return ring.Set(keyring.Item{
		Key:   host,
		Label: "bilbot token for " + host,
		Data:  []byte(token),
	})
}
