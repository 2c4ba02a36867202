package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"edvora-attempt-service/internal/app"
	"edvora-attempt-service/internal/config"
	"edvora-attempt-service/internal/domain"
	"edvora-attempt-service/internal/infra/memory"
	"edvora-attempt-service/internal/infra/remoteapi"
	"github.com/spf13/cobra"
)

// NewTakeCmd builds the CLI subcommand that runs a quiz attempt in the
// terminal.
func NewTakeCmd(configPath *string) *cobra.Command {
	var quizID, userID, name, token string
	cmd := &cobra.Command{
		Use:   "take",
		Short: "Take a quiz interactively in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTake(cmd.Context(), *configPath, takeOptions{
				quizID: quizID,
				userID: userID,
				name:   name,
				token:  token,
			}, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&quizID, "quiz", "quiz-1", "quiz to attempt")
	cmd.Flags().StringVar(&userID, "user", "local", "user identifier")
	cmd.Flags().StringVar(&name, "name", "Local user", "display name")
	cmd.Flags().StringVar(&token, "token", os.Getenv("EDVORA_TOKEN"), "portal API token")
	return cmd
}

type takeOptions struct {
	quizID string
	userID string
	name   string
	token  string
}

func runTake(ctx context.Context, configPath string, opts takeOptions, in io.Reader, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	var source memory.QuizSource = memory.NewStaticQuizSource(sampleQuizzes())
	var grader app.Grader = app.OfflineGrader{}
	if cfg.API.BaseURL != "" {
		client := remoteapi.New(remoteapi.Config{
			BaseURL: cfg.API.BaseURL,
			Timeout: config.Duration(cfg.API.Timeout, 10*time.Second),
		})
		source = client
		grader = client
	}
	catalog := memory.NewCatalogCache(source, config.Duration(cfg.Catalog.TTL, 10*time.Minute))

	session := memory.NewSessionStore()
	session.Login(opts.token, domain.User{ID: opts.userID, Name: opts.name})

	quiz, err := catalog.GetQuiz(ctx, opts.quizID)
	if err != nil {
		return err
	}
	engine, err := app.NewAttemptEngine(quiz, grader, session)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s\n", quiz.Title)
	if quiz.Description != "" {
		fmt.Fprintf(out, "%s\n", quiz.Description)
	}

	scanner := bufio.NewScanner(in)
	var record *domain.AttemptRecord
	for record == nil {
		view := engine.CurrentQuestion()
		printQuestion(out, view)
		if !scanner.Scan() {
			// abandoned attempt, nothing was persisted
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "q":
			fmt.Fprintln(out, "attempt abandoned")
			return nil
		case "b":
			if err := engine.GoBack(); err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
		case "n", "":
			rec, err := engine.Advance(ctx)
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
				continue
			}
			record = rec
		default:
			choice, err := strconv.Atoi(input)
			if err != nil {
				fmt.Fprintln(out, "enter an option number, n (next/submit), b (back) or q (quit)")
				continue
			}
			if err := engine.SelectOption(view.Index, choice-1); err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
		}
	}

	fmt.Fprintf(out, "\nScore: %d/%d (%.2f%%)\n", record.Score, record.TotalMarks, record.Percentage())
	if record.Passed() {
		fmt.Fprintln(out, "Result: PASS")
	} else {
		fmt.Fprintln(out, "Result: FAIL")
	}

	fmt.Fprintln(out, "\nReview:")
	for i, entry := range app.ReconstructReview(*record, quiz) {
		printReviewEntry(out, i, entry)
	}
	return nil
}

func printQuestion(out io.Writer, view domain.QuestionView) {
	fmt.Fprintf(out, "\n[%d/%d] %s\n", view.Index+1, view.Total, view.Text)
	for i, option := range view.Options {
		marker := " "
		if view.SelectedIndex != nil && *view.SelectedIndex == i {
			marker = "*"
		}
		fmt.Fprintf(out, " %s %d) %s\n", marker, i+1, option)
	}
	action := "next"
	if view.Last {
		action = "submit"
	}
	fmt.Fprintf(out, "choose 1-%d, n=%s, b=back, q=quit: ", len(view.Options), action)
}

func printReviewEntry(out io.Writer, i int, entry domain.ReviewEntry) {
	status := "wrong"
	if entry.IsCorrect {
		status = "correct"
	} else if entry.IsSkipped {
		status = "skipped"
	}
	fmt.Fprintf(out, "%d. %s [%s]\n", i+1, entry.QuestionText, status)
	if entry.CorrectIndex >= 0 && entry.CorrectIndex < len(entry.Options) {
		fmt.Fprintf(out, "   answer: %s\n", entry.Options[entry.CorrectIndex])
	}
}
