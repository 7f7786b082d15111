package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/questmind/questmind/pkg/config"
	"github.com/questmind/questmind/pkg/logger"
	"github.com/questmind/questmind/pkg/persona"
	"github.com/questmind/questmind/pkg/providers"
)

func buildRootCommand() *cobra.Command {
	var showVersion bool
	var configPath string

	root := &cobra.Command{
		Use:           "questmind",
		Short:         "Adaptive learning-companion profile service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config JSON (default <workspace>/config.json)")

	root.AddCommand(newReplCommand(&configPath))
	root.AddCommand(newProfileCommand(&configPath))
	root.AddCommand(newVersionCommand())

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion()
		},
	}
}

func loadService(configPath string) (*persona.Service, *config.Config, providers.LLMProvider, error) {
	cfg, err := config.Load(resolveConfigPath(configPath))
	if err != nil {
		return nil, nil, nil, err
	}

	provider, err := providers.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	log := logger.New("persona")
	var llm providers.LLMProvider
	if provider != nil {
		llm = provider
	}

	svc, err := persona.NewService(persona.Config{
		Workspace:       cfg.WorkspacePath(),
		Model:           cfg.Provider.Model,
		SessionWindow:   cfg.Persona.SessionWindow,
		CachedUsers:     cfg.Persona.CachedUsers,
		LogCap:          cfg.Persona.LogCap,
		PersistInterval: cfg.Persona.PersistInterval,
		MaintenanceCron: cfg.Persona.MaintenanceCron,
	}, llm, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return svc, cfg, llm, nil
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	cfg := config.DefaultConfig()
	return filepath.Join(cfg.WorkspacePath(), "config.json")
}

func newProfileCommand(configPath *string) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Print a user's context summary as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" {
				return fmt.Errorf("--user is required")
			}
			svc, _, _, err := loadService(*configPath)
			if err != nil {
				return err
			}
			defer svc.Close()

			summary := svc.BuildContext(cmd.Context(), userID)
			data, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User id to summarize")
	return cmd
}

func newReplCommand(configPath *string) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive chat loop that feeds the personalization core",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" {
				userID = "local"
			}
			svc, cfg, llm, err := loadService(*configPath)
			if err != nil {
				return err
			}
			defer svc.Close()

			rl, err := readline.New("you> ")
			if err != nil {
				return err
			}
			defer rl.Close()

			fmt.Println("questmind repl — /profile to inspect, /quit to exit")
			for {
				line, err := rl.Readline()
				if err == readline.ErrInterrupt || err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
				line = strings.TrimSpace(line)
				switch {
				case line == "":
					continue
				case line == "/quit", line == "/exit":
					return nil
				case line == "/profile":
					summary := svc.BuildContext(cmd.Context(), userID)
					data, _ := json.MarshalIndent(summary, "", "  ")
					fmt.Println(string(data))
					continue
				}

				reply := runTurn(cmd.Context(), svc, llm, cfg, userID, line)
				fmt.Println(reply)
			}
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User id for this session (default \"local\")")
	return cmd
}

func runTurn(ctx context.Context, svc *persona.Service, llm providers.LLMProvider, cfg *config.Config, userID, message string) string {
	reply := "(no provider configured — interaction recorded)"
	if llm != nil {
		summary := svc.BuildContext(ctx, userID)
		prompt := buildReplyPrompt(summary, message)
		if text, err := llm.Generate(ctx, prompt, cfg.Provider.Model); err == nil {
			reply = text
		} else {
			reply = fmt.Sprintf("(generation failed: %v — interaction recorded)", err)
		}
	}

	if _, err := svc.RecordTurn(ctx, userID, message, reply, persona.InteractionMetadata{}); err != nil {
		fmt.Printf("warning: %v\n", err)
	}
	return reply
}

func buildReplyPrompt(summary persona.ContextSummary, message string) string {
	var b strings.Builder
	b.WriteString("You are a friendly learning companion. Adapt to the user profile below.\n")
	if data, err := json.Marshal(summary); err == nil {
		b.WriteString("Profile: " + string(data) + "\n")
	}
	b.WriteString("User: " + message + "\n")
	b.WriteString("Reply conversationally.")
	return b.String()
}
