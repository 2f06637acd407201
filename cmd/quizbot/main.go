package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/quizbot/core/buildinfo"
	corecmd "github.com/m3rciful/quizbot/core/cmd"
	"github.com/m3rciful/quizbot/internal/bot"
	"github.com/m3rciful/quizbot/internal/config"
	"github.com/m3rciful/quizbot/internal/question"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "quizbot",
		Short:         "Telegram quiz bot",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringP("config", "c", "", "path to config.yaml (or set CONFIG_PATH)")

	serve := serveCmd()
	root.AddCommand(serve, validateCmd(), versionCmd())
	root.RunE = serve.RunE
	return root
}

func configFlag(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return corecmd.Run(corecmd.Options{
				ConfigPath:        configFlag(cmd),
				DefaultConfigPath: defaultConfigPath,
				LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
					return config.Load(path)
				},
				Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
					appCfg, ok := cfg.(*config.Config)
					if !ok {
						return nil, fmt.Errorf("unexpected config type %T", cfg)
					}
					return bot.Build(ctx, appCfg)
				},
			})
		},
	}
}

func validateCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the question set and report problems",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := corecmd.ResolveConfigPath(corecmd.Options{
				ConfigPath:        configFlag(cmd),
				DefaultConfigPath: defaultConfigPath,
			})
			if err != nil {
				return err
			}
			cfg, err := config.LoadQuestions(path)
			if err != nil {
				return err
			}
			repo, err := question.Load(cmd.Context(), cfg.Questions.Source())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, genre := range repo.Genres() {
				fmt.Fprintf(out, "%-20s %d\n", genre, len(repo.QuestionsByGenre(genre)))
			}
			problems := repo.Problems()
			for _, p := range problems {
				fmt.Fprintf(out, "problem: genre=%q id=%q %s\n", p.Genre, p.ID, p.Reason)
			}
			fmt.Fprintf(out, "%d questions, %d problems\n", repo.Len(), len(problems))
			if strict && len(problems) > 0 {
				return fmt.Errorf("%d problems found", len(problems))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any problem is found")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}
