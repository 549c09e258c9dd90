package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"voicelog/internal/config"
)

var secretKeys = map[string]string{
	"openai":    config.SecretOpenAI,
	"anthropic": config.SecretAnthropic,
	"deepgram":  config.SecretDeepgram,
}

func NewSecretsCmd(store config.SecretStore) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "secrets",
		Short:       "Store provider API keys in the OS keyring",
		Annotations: map[string]string{skipServices: "true"},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <openai|anthropic|deepgram>",
		Short: "Read an API key from stdin and store it",
		Example: `  # Store the OpenAI key
  printf '%s' "$KEY" | voicelogctl secrets set openai`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{skipServices: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secretKey(args[0])
			if err != nil {
				return err
			}
			value, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			value = strings.TrimSpace(value)
			if value == "" {
				if err != nil {
					return fmt.Errorf("read key from stdin: %w", err)
				}
				return errors.New("empty key")
			}
			if err := store.Set(key, value); err != nil {
				return fmt.Errorf("store %s key: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s key\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "delete <openai|anthropic|deepgram>",
		Short:       "Remove a stored API key",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{skipServices: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secretKey(args[0])
			if err != nil {
				return err
			}
			if err := store.Delete(key); err != nil {
				if errors.Is(err, config.ErrSecretNotFound) {
					return fmt.Errorf("no %s key stored", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s key\n", args[0])
			return nil
		},
	})

	return cmd
}

func secretKey(provider string) (string, error) {
	key, ok := secretKeys[strings.ToLower(provider)]
	if !ok {
		return "", fmt.Errorf("unknown provider %q", provider)
	}
	return key, nil
}
