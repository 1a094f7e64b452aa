package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"deskbuddy/internal/app"
	"deskbuddy/internal/cli/scheme/colours"
	"deskbuddy/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var (
		configFile string
		verbose    bool
		// set by PersistentPreRunE, read by the signal handler
		buddy atomic.Pointer[app.DeskBuddy]
	)

	rootCmd := &cobra.Command{
		Use:   "deskbuddy",
		Short: "🤖 A talking assistant for your desk",
		Long: `
┌─────────────────────────────────────┐
│  🤖 Welcome to AI Desk Buddy! 🖥️    │
│  Chat, reminders and a voice        │
│  that speaks as it thinks 🔊        │
└─────────────────────────────────────┘

Desk Buddy streams answers from a local or hosted model and reads them
aloud sentence by sentence. Ask it to remind you of things, too!
		`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}

			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			logrus.SetLevel(cfg.LogLevel)
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}

			buddy.Store(app.NewDeskBuddy(cfg))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default $HOME/.deskbuddy/deskbuddy.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	run := func(fn func(*app.DeskBuddy, *cobra.Command, []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return fn(buddy.Load(), cmd, args)
		}
	}

	// Chat command
	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "💬 Talk with your desk buddy",
		Long:  "Chat with the model; answers are printed and spoken as they stream in",
		Args:  cobra.NoArgs,
		RunE:  run((*app.DeskBuddy).Chat),
	}
	chatCmd.Flags().String("remote", "", "Also relay speech to Pi clients connecting on this address (bare flag uses link.listen)")
	chatCmd.Flags().Lookup("remote").NoOptDefVal = app.ListenFromConfig
	chatCmd.Flags().BoolP("quiet", "q", false, "Do not play audio locally")
	chatCmd.Flags().BoolP("text", "t", false, "Text only, no speech")

	rootCmd.RunE = chatCmd.RunE
	rootCmd.Flags().AddFlagSet(chatCmd.Flags())

	// Say command
	sayCmd := &cobra.Command{
		Use:   "say [text...]",
		Short: "🔊 Speak some text",
		Long:  "Speak the arguments, or standard input when none are given",
		RunE:  run((*app.DeskBuddy).Say),
	}

	// Pi command
	piCmd := &cobra.Command{
		Use:   "pi",
		Short: "🍓 Run as a Pi speaker",
		Long:  "Connect to a laptop running 'deskbuddy chat --remote' and speak what it relays",
		Args:  cobra.NoArgs,
		RunE:  run((*app.DeskBuddy).Pi),
	}
	piCmd.Flags().StringP("server", "s", "", "Link server URL (default from link.server)")
	piCmd.Flags().StringP("name", "n", "", "Name announced to the server (default from link.name)")

	// Tasks commands
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "📋 Show your tasks",
		Args:  cobra.NoArgs,
		RunE:  run((*app.DeskBuddy).ListTasks),
	}
	tasksCmd.Flags().BoolP("all", "a", false, "Include finished tasks")

	doneCmd := &cobra.Command{
		Use:   "done <id>",
		Short: "✅ Mark a task as done",
		Args:  cobra.ExactArgs(1),
		RunE:  run((*app.DeskBuddy).CompleteTask),
	}
	rmCmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "🗑️ Remove a task",
		Args:  cobra.ExactArgs(1),
		RunE:  run((*app.DeskBuddy).DeleteTask),
	}
	tasksCmd.AddCommand(doneCmd, rmCmd)

	// Cache commands
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "💾 Manage the speech clip cache",
	}
	cacheCmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "📊 Show cache status",
			RunE:  run((*app.DeskBuddy).ShowCacheStatus),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "🧹 Remove every cached clip",
			RunE:  run((*app.DeskBuddy).ClearCache),
		},
	)

	// History commands
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "🗂️ Show saved conversations",
		Args:  cobra.NoArgs,
		RunE:  run((*app.DeskBuddy).ListSessions),
	}
	historyCmd.AddCommand(
		&cobra.Command{
			Use:   "show <id>",
			Short: "💬 Print one conversation",
			Args:  cobra.ExactArgs(1),
			RunE:  run((*app.DeskBuddy).ShowSession),
		},
		&cobra.Command{
			Use:   "info",
			Short: "📊 Show history file details",
			RunE:  run((*app.DeskBuddy).ShowHistoryInfo),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "🧹 Forget every conversation",
			RunE:  run((*app.DeskBuddy).ClearHistory),
		},
	)

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "🎤 List speech providers on this machine",
		RunE:  run((*app.DeskBuddy).ListProviders),
	}
	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "🗣️ List voices of the selected provider",
		RunE:  run((*app.DeskBuddy).ListVoices),
	}
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "🧠 List models offered by the LLM backend",
		RunE:  run((*app.DeskBuddy).Models),
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "🌐 Answer questions over HTTP",
		Long:  "Serve POST /ask {\"question\": ...} with the model's reply as {\"response\": ...}, without speech",
		Args:  cobra.NoArgs,
		RunE:  run((*app.DeskBuddy).Serve),
	}
	serveCmd.Flags().StringP("listen", "l", "", "Address to listen on (default from api.listen)")

	rootCmd.AddCommand(chatCmd, sayCmd, piCmd, serveCmd, tasksCmd, historyCmd, cacheCmd, providersCmd, voicesCmd, modelsCmd)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		if b := buddy.Load(); b != nil {
			b.Shutdown()
		}
		fmt.Println("\n" + colours.Warning.Sprint("👋 Goodbye!"))

		<-sigChan
		os.Exit(1)
	}()

	if err := rootCmd.Execute(); err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
}
