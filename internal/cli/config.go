package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/pratik-mahalle/costmonitor/internal/config"
	apperrors "github.com/pratik-mahalle/costmonitor/internal/pkg/errors"
	"github.com/pratik-mahalle/costmonitor/internal/pkg/validator"
)

const maskedValue = "********"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage costmonitor configuration",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive first-time setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := bufio.NewReader(os.Stdin)

			prompts := []struct {
				key      string
				question string
				def      string
			}{
				{key: "EMAIL_FROM", question: "Verified SES sender address", def: "noreply@awscostmonitor.com"},
				{key: "EMAIL_TO", question: "Recipients (comma-separated)", def: ""},
				{key: "USER_TIMEZONE", question: "Report timezone", def: "US/Central"},
				{key: "REPORT_MODE", question: "Report mode (timeframes/rolling)", def: config.ModeTimeframes},
			}

			for _, p := range prompts {
				if p.def != "" {
					fmt.Printf("%s [%s]: ", p.question, p.def)
				} else {
					fmt.Printf("%s: ", p.question)
				}
				answer, _ := reader.ReadString('\n')
				answer = strings.TrimSpace(answer)
				if answer == "" {
					answer = p.def
				}
				if answer != "" {
					viper.Set(p.key, answer)
				}
			}

			fmt.Print("AWS access key ID (blank to use the default credential chain): ")
			keyID, _ := reader.ReadString('\n')
			if keyID = strings.TrimSpace(keyID); keyID != "" {
				viper.Set("AWS_ACCESS_KEY_ID", keyID)
				viper.Set("AWS_SECRET_ACCESS_KEY", promptSecret("AWS secret access key: "))
			}

			path, err := writeConfig()
			if err != nil {
				return err
			}

			fmt.Printf("Configuration saved to %s\n", path)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.ToUpper(args[0])
			viper.Set(key, args[1])
			if _, err := writeConfig(); err != nil {
				return err
			}
			if isSecretKey(key) {
				fmt.Printf("Set %s = %s\n", key, maskedValue)
			} else {
				fmt.Printf("Set %s = %s\n", key, args[1])
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a raw configuration value from the file or environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.ToUpper(args[0])
			viper.AutomaticEnv()
			val := viper.Get(key)
			switch {
			case val == nil || val == "":
				fmt.Printf("%s: (not set)\n", key)
			case isSecretKey(key):
				fmt.Printf("%s: %s\n", key, maskedValue)
			default:
				fmt.Printf("%s: %v\n", key, val)
			}
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration with defaults applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			masked := maskConfig(*cfg)

			if getOutputFormat() == "json" {
				return printJSON(stdout, masked)
			}
			return printYAML(stdout, masked)
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and list every problem",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadConfig()
			if err == nil {
				fmt.Println("Configuration is valid.")
				return nil
			}

			problems := validationDetails(err)
			if problems == nil {
				return err
			}

			if isStructured() {
				if perr := printOutput(problems); perr != nil {
					return perr
				}
			} else {
				table := NewTable("FIELD", "MESSAGE")
				for _, p := range problems {
					table.AddRow(p.Field, p.Message)
				}
				table.Render()
			}
			return fmt.Errorf("%d configuration problem(s) found", len(problems))
		},
	}
}

// validationDetails extracts field errors from a config load failure, or nil
func validationDetails(err error) []validator.ValidationError {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrCodeInvalidConfig {
		return nil
	}
	details, _ := appErr.Details.([]validator.ValidationError)
	return details
}

// maskConfig hides credentials; cfg is a copy
func maskConfig(cfg config.Config) config.Config {
	cfg.AWS.SecretAccessKey = mask(cfg.AWS.SecretAccessKey)
	cfg.AWS.SessionToken = mask(cfg.AWS.SessionToken)
	cfg.Database.DSN = mask(cfg.Database.DSN)
	return cfg
}

func promptSecret(prompt string) string {
	fmt.Print(prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return ""
	}
	return string(secret)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return maskedValue
}

func isSecretKey(key string) bool {
	switch key {
	case "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN", "DB_DSN":
		return true
	}
	return false
}

// writeConfig saves viper settings to --config or ~/.costmonitor/config.yaml
func writeConfig() (string, error) {
	path := cfgFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".costmonitor", "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := viper.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}
