package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fairtest/fairtest-backend/internal/examfile"
	"github.com/fairtest/fairtest-backend/internal/privacy"
	"github.com/fairtest/fairtest-backend/internal/submission"
	"github.com/fairtest/fairtest-backend/internal/validator"
)

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit answers under the stored identity for an exam",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := newEnv(cmd)
			examID := e.v.GetString("exam")

			answers, err := examfile.LoadAnswers(e.v.GetString("answers"))
			if err != nil {
				return err
			}

			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := e.context(cmd)
			defer cancel()
			rec, err := store.Load(ctx, examID)
			if err != nil {
				return fmt.Errorf("load identity for %s: %w", examID, err)
			}

			res, err := e.client().Submit(ctx, rec, submission.Answers(answers))
			if errors.Is(err, privacy.ErrAuditFailed) {
				e.log.Error().Str("exam_id", examID).Msg("Submission blocked by privacy audit")
				return errors.New("refusing to submit: answers contain your wallet address")
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	f := cmd.Flags()
	f.String("exam", "", "Exam id")
	f.String("answers", "", "Answers file (YAML or JSON map of question id to answer)")
	_ = cmd.MarkFlagRequired("exam")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func resultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result",
		Short: "Read back a result by exam identity or pseudonym hash",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := newEnv(cmd)
			ctx, cancel := e.context(cmd)
			defer cancel()

			ph := e.v.GetString("pseudonym-hash")
			if ph == "" {
				examID := e.v.GetString("exam")
				if examID == "" {
					return errors.New("either --exam or --pseudonym-hash is required")
				}
				store, err := e.openStore()
				if err != nil {
					return err
				}
				defer store.Close()
				rec, err := store.Load(ctx, examID)
				if err != nil {
					return fmt.Errorf("load identity for %s: %w", examID, err)
				}
				ph = rec.PseudonymHash
			}
			if !validator.IsSHA256Hex(ph) {
				return errors.New("pseudonym hash must be 64 lowercase hex characters")
			}

			res, err := e.client().Result(ctx, ph)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().String("exam", "", "Exam id (uses the stored identity)")
	cmd.Flags().String("pseudonym-hash", "", "Pseudonym hash to look up")
	return cmd
}

func examsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exams [query]",
		Short: "List registered exams, or resolve one with --name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := newEnv(cmd)
			ctx, cancel := e.context(cmd)
			defer cancel()

			if name := e.v.GetString("name"); name != "" {
				entry, err := e.client().LookupExam(ctx, name)
				if err != nil {
					return err
				}
				return printJSON(cmd, entry)
			}

			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			entries, err := e.client().ListExams(ctx, query)
			if err != nil {
				return err
			}
			return printJSON(cmd, entries)
		},
	}
	cmd.Flags().String("name", "", "Registered name to resolve (e.g. neet-practice-2024.fairtest.eth)")
	return cmd
}
