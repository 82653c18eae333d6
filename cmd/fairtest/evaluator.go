package main

import (
	"errors"
	"fmt"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fairtest/fairtest-backend/internal/examfile"
	"github.com/fairtest/fairtest-backend/internal/model"
)

func evaluatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluator",
		Short: "Evaluator operations (require a token)",
	}
	cmd.AddCommand(
		evaluatorLoginCmd(),
		evaluatorAnswerKeyCmd(),
		evaluatorRegisterCmd(),
		evaluatorGradeCmd(),
		evaluatorPublishCmd(),
		evaluatorVerifyCmd(),
	)
	return cmd
}

func evaluatorLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a token for FAIRTEST_TOKEN",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := newEnv(cmd)

			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			password, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}

			ctx, cancel := e.context(cmd)
			defer cancel()
			res, err := e.client().Login(ctx, e.v.GetString("email"), string(password))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Token)
			return nil
		},
	}
	cmd.Flags().String("email", "", "Evaluator email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func evaluatorAnswerKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "answer-key",
		Short: "Upload an exam file as the answer key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := newEnv(cmd)
			exam, err := examfile.LoadExam(e.v.GetString("exam-file"))
			if err != nil {
				return err
			}
			examID := e.v.GetString("exam")
			if examID == "" {
				examID = exam.ExamID
			}
			if examID == "" {
				return errors.New("exam id missing: pass --exam or set exam_id in the file")
			}

			ctx, cancel := e.context(cmd)
			defer cancel()
			if err := e.client().PutAnswerKey(ctx, examID, exam.Questions); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "answer key for %s uploaded (%d questions)\n", examID, len(exam.Questions))
			return nil
		},
	}
	cmd.Flags().String("exam", "", "Exam id (defaults to exam_id in the file)")
	cmd.Flags().String("exam-file", "", "Exam file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("exam-file")
	return cmd
}

func evaluatorRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an exam name",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := newEnv(cmd)
			ctx, cancel := e.context(cmd)
			defer cancel()

			entry, err := e.client().RegisterExam(ctx, model.RegisterExamRequest{
				ExamName: e.v.GetString("name"),
				ExamID:   e.v.GetString("exam"),
				ExamFee:  e.v.GetString("fee"),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, entry)
		},
	}
	f := cmd.Flags()
	f.String("name", "", "Human exam name, e.g. \"NEET Practice 2024\"")
	f.String("exam", "", "Exam id")
	f.String("fee", "", "Registration fee")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("exam")
	return cmd
}

func evaluatorGradeCmd() *cobra.Command {
	var grades map[string]string
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Apply manual grades, e.g. --grade q7=3.5",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := newEnv(cmd)
			parsed := make(map[string]float64, len(grades))
			for qid, raw := range grades {
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return fmt.Errorf("grade for %s: %w", qid, err)
				}
				parsed[qid] = v
			}
			if len(parsed) == 0 {
				return errors.New("at least one --grade is required")
			}

			ctx, cancel := e.context(cmd)
			defer cancel()
			res, err := e.client().ApplyManualGrades(ctx, e.v.GetString("exam"), e.v.GetString("pseudonym-hash"), parsed)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	f := cmd.Flags()
	f.String("exam", "", "Exam id")
	f.String("pseudonym-hash", "", "Pseudonym hash of the submission")
	f.StringToStringVar(&grades, "grade", nil, "Question grade as qid=score (repeatable)")
	_ = cmd.MarkFlagRequired("exam")
	_ = cmd.MarkFlagRequired("pseudonym-hash")
	return cmd
}

func evaluatorPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Rank an exam and write the leaderboard to the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := newEnv(cmd)
			ctx, cancel := e.context(cmd)
			defer cancel()
			res, err := e.client().Publish(ctx, e.v.GetString("exam"))
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().String("exam", "", "Exam id")
	_ = cmd.MarkFlagRequired("exam")
	return cmd
}

func evaluatorVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the ledger hash chain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := newEnv(cmd)
			ctx, cancel := e.context(cmd)
			defer cancel()
			report, err := e.client().VerifyLedger(ctx)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("ledger chain broken at seq %d: %s", report.BrokenAt, report.Reason)
			}
			return nil
		},
	}
}
