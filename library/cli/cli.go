package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Astemirdum/library-catalog/library/client"
	"github.com/Astemirdum/library-catalog/library/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const tokenFileName = "token"

type cli struct {
	cfg       *config.Client
	log       *zap.Logger
	out       io.Writer
	in        io.Reader
	reader    *bufio.Reader
	tokenFile string

	client *client.Client
}

type Option func(c *cli)

func WithOutput(w io.Writer) Option {
	return func(c *cli) {
		c.out = w
	}
}

// WithInput replaces stdin. Secrets are read unmasked from anything but a terminal.
func WithInput(r io.Reader) Option {
	return func(c *cli) {
		c.in = r
	}
}

func NewRootCommand(cfg *config.Client, log *zap.Logger, opts ...Option) *cobra.Command {
	c := &cli{
		cfg: cfg,
		log: log,
		out: os.Stdout,
		in:  os.Stdin,
	}
	for _, opt := range opts {
		opt(c)
	}

	root := &cobra.Command{
		Use:           "libraryctl",
		Short:         "Manage the library catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.connect()
		},
	}
	root.PersistentFlags().StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "catalog server base url")
	root.PersistentFlags().StringVar(&c.tokenFile, "token-file", defaultTokenFile(), "where the admin session token is kept")

	root.AddCommand(
		c.booksCommand(),
		c.categoriesCommand(),
		c.catalogCommand(),
		c.dashboardCommand(),
		c.snapshotCommand(),
		c.loginCommand(),
		c.logoutCommand(),
		c.passwdCommand(),
	)
	return root
}

func (c *cli) connect() error {
	if c.cfg.Token == "" && c.tokenFile != "" {
		data, err := os.ReadFile(c.tokenFile)
		switch {
		case err == nil:
			c.cfg.Token = strings.TrimSpace(string(data))
		case !os.IsNotExist(err):
			return errors.Wrap(err, "read token file")
		}
	}
	c.client = client.New(c.cfg, c.log)
	return nil
}

func (c *cli) saveToken(token string) error {
	if c.tokenFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.tokenFile), 0o700); err != nil {
		return errors.Wrap(err, "create token dir")
	}
	return errors.Wrap(os.WriteFile(c.tokenFile, []byte(token), 0o600), "write token file")
}

func (c *cli) dropToken() error {
	if c.tokenFile == "" {
		return nil
	}
	if err := os.Remove(c.tokenFile); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove token file")
	}
	return nil
}

// readSecret masks input on a terminal and falls back to a plain line otherwise.
func (c *cli) readSecret(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	if c.reader == nil {
		c.reader = bufio.NewReader(c.in)
	}
	line, err := c.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "libraryctl", tokenFileName)
}
