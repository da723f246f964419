package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/skillcadence/internal/journal"
	"github.com/conorfennell/skillcadence/internal/reminder"
	"github.com/conorfennell/skillcadence/internal/web"
)

var (
	skillCategory string
	logFeeling    string
	logLimit      int

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	skillCmd = &cobra.Command{
		Use:   "skill",
		Short: "Manage the skills you practice",
	}
	skillAddCmd = &cobra.Command{
		Use:   "add [name]",
		Short: "Add a skill; its first review is a week out",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSkillAdd,
	}
	skillListCmd = &cobra.Command{
		Use:   "list",
		Short: "List your skills, soonest review first",
		Args:  cobra.NoArgs,
		RunE:  runSkillList,
	}
	skillDeleteCmd = &cobra.Command{
		Use:   "delete [skill-id]",
		Short: "Delete a skill with its review card and logs",
		Args:  cobra.ExactArgs(1),
		RunE:  runSkillDelete,
	}
	skillLogsCmd = &cobra.Command{
		Use:   "logs [skill-id]",
		Short: "Show recent practice logs of a skill",
		Args:  cobra.ExactArgs(1),
		RunE:  runSkillLogs,
	}

	logCmd = &cobra.Command{
		Use:   "log [skill-id] [what you practiced...]",
		Short: "Record a practice session and reschedule the skill",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runLog,
	}

	dueCmd = &cobra.Command{
		Use:   "due",
		Short: "List skills due for review",
		Args:  cobra.NoArgs,
		RunE:  runDue,
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Send one reminder per user with skills due for review",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
)

func init() {
	skillAddCmd.Flags().StringVar(&skillCategory, "category", "", "Category used to pick the minimum review interval")
	skillLogsCmd.Flags().IntVar(&logLimit, "limit", 10, "Number of logs to show; 0 shows all")
	logCmd.Flags().StringVar(&logFeeling, "feeling", "", "How it went: smooth, difficult or normal")

	skillCmd.AddCommand(skillAddCmd, skillListCmd, skillDeleteCmd, skillLogsCmd)
}

// withApp wires the components, runs fn and releases them.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close resources", "error", err)
		}
	}()
	return fn(ctx, a)
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		handler := web.NewServer(a.journal, a.store, reminder.LogNotifier{Logger: logger}, a.metrics, logger)
		server := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server listening", "addr", cfg.Server.Addr)
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

func runSkillAdd(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		skill, err := a.journal.CreateSkill(ctx, userID, strings.Join(args, " "), skillCategory)
		if err != nil {
			return err
		}
		fmt.Printf("Added %q (%s), first review %s\n", skill.Name, skill.ID, skill.NextReviewDate.Format(time.DateOnly))
		return nil
	})
}

func runSkillList(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		skills, err := a.journal.ListSkills(ctx, userID)
		if err != nil {
			return err
		}
		printSkills(skills)
		return nil
	})
}

func runSkillDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.journal.DeleteSkill(ctx, userID, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	})
}

func runSkillLogs(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		logs, err := a.journal.Logs(ctx, userID, args[0], logLimit)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			fmt.Println("No practice logs yet.")
			return nil
		}
		for _, l := range logs {
			fmt.Printf("%s  [%s]  %s\n", l.CreatedAt.Local().Format("2006-01-02 15:04"), l.Feeling, l.Content)
			if l.Analysis != nil && l.Analysis.Suggestion != "" {
				fmt.Printf("    suggestion: %s\n", l.Analysis.Suggestion)
			}
		}
		return nil
	})
}

func runLog(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		out, err := a.journal.SubmitLog(ctx, journal.LogRequest{
			UserID:  userID,
			SkillID: args[0],
			Content: strings.Join(args[1:], " "),
			Feeling: logFeeling,
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s: graded %s, skill level %.1f (confidence %.0f%%)\n",
			out.Skill.Name, out.Schedule.Grade, out.Analysis.SkillLevel, out.Analysis.Confidence*100)
		fmt.Printf("Next review in %d days, on %s\n", out.Schedule.DaysUntil, out.Schedule.Due.Local().Format(time.DateOnly))
		if out.Analysis.Suggestion != "" {
			fmt.Printf("Suggestion: %s\n", out.Analysis.Suggestion)
		}
		return nil
	})
}

func runDue(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		skills, err := a.journal.DueSkills(ctx, userID)
		if err != nil {
			return err
		}
		if len(skills) == 0 {
			fmt.Println("Nothing due. Keep it up!")
			return nil
		}
		printSkills(skills)
		return nil
	})
}

func runSweep(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		report, err := reminder.RunSweep(ctx, a.store, reminder.LogNotifier{Logger: logger}, time.Now(), logger)
		if err != nil {
			return err
		}
		for range report.Notified {
			a.metrics.ReminderSent()
		}
		fmt.Printf("%d skills due, %d users notified, %d failed\n", report.DueSkills, len(report.Notified), len(report.Failed))
		return nil
	})
}

func printSkills(skills []journal.SkillSummary) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tNEXT REVIEW\tDAYS\tMASTERY\tREPS")
	for _, s := range skills {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%d\n",
			s.ID, s.Name, s.Category, s.NextReviewDate.Local().Format(time.DateOnly), s.DaysUntil, s.Mastery, s.Reps)
	}
	tw.Flush()
}
