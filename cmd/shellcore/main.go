// Command shellcore is a minimal interactive host for the execution core.
// It reads command lines, evaluates the configured prompt through a nested
// prompt executor, and routes Ctrl-C to whichever pipeline is currently
// running.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	shellcore "github.com/smnsjas/go-shellcore"
	"github.com/smnsjas/go-shellcore/executor"
	"github.com/smnsjas/go-shellcore/objects"
	"github.com/smnsjas/go-shellcore/shell/commands"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "shellcore",
		Short:        "Interactive pipeline shell",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd.OutOrStdout(), cmd.InOrStdin())
		},
	}

	flags := cmd.Flags()
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("prompt-command", "echo '> '", "command evaluated to produce the prompt")
	flags.Duration("prompt-grace", executor.DefaultPromptCancelGrace, "grace before a prompt evaluation is cancelled")
	flags.String("config", "", "config file (default $HOME/.shellcore.yaml)")

	cobra.OnInitialize(func() {
		initConfig(cmd)
	})
	_ = viper.BindPFlags(flags)
	viper.SetEnvPrefix("SHELLCORE")
	viper.AutomaticEnv()

	return cmd
}

func initConfig(cmd *cobra.Command) {
	if cfg, _ := cmd.Flags().GetString("config"); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".shellcore")
			viper.SetConfigType("yaml")
		}
	}
	// A missing config file is fine; a broken one is not.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && viper.ConfigFileUsed() != "" {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
	}
}

func runREPL(out io.Writer, in io.Reader) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "shellcore"})
	if lvl, err := log.ParseLevel(viper.GetString("log-level")); err == nil {
		logger.SetLevel(lvl)
	}

	session := shellcore.NewSession(commands.DefaultTable(),
		shellcore.WithOutput(out),
		shellcore.WithSessionLogger(logger),
	)
	exec := session.NewExecutor()
	promptExec := session.NewPromptExecutor(
		executor.WithPromptCancelGrace(viper.GetDuration("prompt-grace")),
	)
	promptCommand := viper.GetString("prompt-command")

	// Ctrl-C cancels the running pipeline instead of killing the host.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)
	go func() {
		for range interrupts {
			session.CancelCurrent()
		}
	}()

	ctx := context.Background()
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, evalPrompt(ctx, promptExec, promptCommand, logger))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if line == "exit" {
			return nil
		}

		if err := runLine(ctx, exec, line, logger); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

// runLine invokes one command line, converting severe failures back into a
// fatal exit instead of letting the panic unwind through the REPL.
func runLine(ctx context.Context, exec *executor.Executor, line string, logger *log.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && objects.IsSevere(e) {
				logger.Fatal("unrecoverable failure", "err", e)
			}
			panic(r)
		}
	}()
	_, err = exec.ExecuteCommand(ctx, line, executor.AddOutputter|executor.AddToHistory)
	return err
}

// evalPrompt runs the prompt command on the nested prompt executor. Any
// failure falls back to a plain marker so the REPL stays usable.
func evalPrompt(ctx context.Context, promptExec *executor.Executor, promptCommand string, logger *log.Logger) string {
	text, err := promptExec.ExecuteCommandString(ctx, promptCommand, 0)
	if err != nil || text == "" {
		if err != nil {
			logger.Debug("prompt evaluation failed", "err", err)
		}
		return "> "
	}
	return text
}
