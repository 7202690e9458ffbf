package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"audiencedeck/cmd/deck/ui"
	"audiencedeck/internal/api"
	"audiencedeck/internal/config"
	"audiencedeck/internal/logging"
)

var (
	// Global flags
	stateDir string
	verbose  bool
	password string
	wait     time.Duration

	// Logger for non-interactive commands
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "deck",
	Short: "audiencedeck - creator audience dashboard",
	Long: `audiencedeck is a terminal dashboard for creator audience analytics.

It links social accounts through the Phyllo Connect widget (hosted in a
local Chrome window) and charts the audience demographics the backend
aggregates for each linked account.

Run without arguments to start the interactive dashboard.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Initialize(stateDir)

		// Skip the zap logger for the interactive dashboard; it has its own UI.
		if cmd.Use == "deck" && cmd.CalledAs() == "deck" {
			return nil
		}

		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDashboard()
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup [email]",
	Short: "Create an account and sign in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAuth(args[0], true)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Sign in to an existing account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAuth(args[0], false)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and wipe stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(stateDir)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.sessions.Clear(); err != nil {
			return fmt.Errorf("clear credentials: %w", err)
		}
		fmt.Println("Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(stateDir)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := commandContext()
		defer cancel()

		user, err := a.client.Me(ctx)
		if err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				return errors.New("not signed in")
			}
			return err
		}
		fmt.Printf("%s (%s)\n", user.Email, user.ID)
		return nil
	},
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List connected accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(stateDir)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := commandContext()
		defer cancel()

		accounts, err := a.LoadAccounts(ctx)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			fmt.Println("No accounts connected yet. Run: deck connect")
			return nil
		}

		styles := ui.NewStyles(ui.ResolveTheme(a.cfg.UI.Theme))
		table := ui.NewSimpleTable("Connected Accounts", []string{"Platform", "Username", "Connected", "ID"})
		for _, acct := range accounts {
			table.AddRow(acct.Platform, acct.Username, acct.CreatedAt.Format("2006-01-02"), acct.ID)
		}
		fmt.Print(table.View(styles))
		return nil
	},
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show audience demographics for every connected account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(stateDir)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := commandContext()
		defer cancel()

		records, err := a.LoadInsights(ctx)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No audience data yet.")
			return nil
		}

		styles := ui.NewStyles(ui.ResolveTheme(a.cfg.UI.Theme))
		accounts, _ := a.snapshot.Accounts()
		names := make(map[string]string, len(accounts))
		for _, acct := range accounts {
			names[acct.ID] = fmt.Sprintf("%s · @%s", acct.Platform, acct.Username)
		}

		for _, rec := range records {
			title := rec.AccountID
			if n, ok := names[rec.AccountID]; ok {
				title = n
			}
			fmt.Println(styles.Title.Render(title))
			if rec.Demographics.Empty() {
				fmt.Println(styles.Muted.Render("  no demographic data yet"))
				fmt.Println()
				continue
			}
			charts := []ui.BarChart{
				{Title: "Gender", Data: rec.Demographics.Gender},
				{Title: "Age", Data: rec.Demographics.Age},
				{Title: "Top Countries", Data: rec.Demographics.Countries, MaxRows: 8},
				{Title: "Top Cities", Data: rec.Demographics.Cities, MaxRows: 8},
			}
			for _, c := range charts {
				if len(c.Data) == 0 {
					continue
				}
				fmt.Print(c.View(styles, 72))
				fmt.Println()
			}
		}
		return nil
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Link a social account through the Connect widget",
	Long: `Opens the Phyllo Connect widget in a Chrome window and waits for the
flow to finish. The command returns when the widget reports a terminal
event (connected, exited, failed) or when --wait elapses.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(stateDir)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		logger.Info("starting connect run",
			zap.String("environment", a.cfg.Phyllo.Environment))

		if err := a.Connect(ctx); err != nil {
			return err
		}
		fmt.Println("Connect window open. Finish linking your account there.")

		// The run stays busy until a terminal widget event clears it.
		deadline := time.After(wait)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for a.Busy() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-deadline:
				return fmt.Errorf("gave up waiting after %s", wait)
			case <-ticker.C:
			}
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write the default config file for editing",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := stateDir + "/config.yaml"
		if _, err := os.Stat(path); err == nil {
			fmt.Println(path)
			return nil
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func runAuth(email string, signup bool) error {
	a, err := newApp(stateDir)
	if err != nil {
		return err
	}
	defer a.close()

	pw := password
	if pw == "" {
		pw, err = promptPassword()
		if err != nil {
			return err
		}
	}

	ctx, cancel := commandContext()
	defer cancel()

	var sess api.Session
	if signup {
		sess, err = a.client.Signup(ctx, email, pw)
	} else {
		sess, err = a.client.Login(ctx, email, pw)
	}
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) {
			return fmt.Errorf("authentication failed (%d): %s", se.Status, se.Body)
		}
		return err
	}

	if err := a.sessions.Save(sess); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	fmt.Printf("Signed in as %s\n", sess.User.Email)
	return nil
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runDashboard() error {
	a, err := newApp(stateDir)
	if err != nil {
		return err
	}
	defer a.close()

	if _, ok := a.sessions.User(); !ok {
		fmt.Println("Not signed in. Run: deck login <email>")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.startWatcher(ctx); err != nil {
		logging.Session("credential watcher unavailable: %v", err)
	}

	styles := ui.NewStyles(ui.ResolveTheme(a.cfg.UI.Theme))
	dashboard := ui.NewDashboard(a, styles)

	// The program does not exist yet when the model is constructed, so both
	// the model and the sink send through this indirection.
	var program *tea.Program
	send := func(msg tea.Msg) {
		if program != nil {
			program.Send(msg)
		}
	}
	dashboard.SetSender(send)
	a.setSender(send)

	program = tea.NewProgram(dashboard, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", config.DefaultStateDir(),
		"directory for config, credentials and the snapshot cache")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	signupCmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	loginCmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	connectCmd.Flags().DurationVar(&wait, "wait", 10*time.Minute, "how long to wait for the widget to finish")

	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
