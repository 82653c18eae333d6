package main

import (
	"github.com/spf13/cobra"

	"github.com/fairtest/fairtest-backend/internal/evaluation"
	"github.com/fairtest/fairtest-backend/internal/examfile"
	"github.com/fairtest/fairtest-backend/internal/ranking"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Grade an answer file against an exam file, offline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := newEnv(cmd)

			exam, err := examfile.LoadExam(e.v.GetString("exam-file"))
			if err != nil {
				return err
			}
			answers, err := examfile.LoadAnswers(e.v.GetString("answers"))
			if err != nil {
				return err
			}

			cfg := evaluation.DefaultConfig()
			cfg.PartialCredit = e.v.GetBool("partial-credit")
			cfg.NegativeMarking = e.v.GetBool("negative-marking")
			cfg.MinTotalScore = e.v.GetFloat64("min-total")
			cfg.Precision = e.v.GetInt("precision")

			res, err := evaluation.New(cfg).Evaluate(exam.Questions, answers)
			if err != nil {
				return err
			}
			res.ExamID = exam.ExamID
			if len(res.FailedIDs) > 0 {
				e.log.Warn().Strs("failed_ids", res.FailedIDs).Msg("Some questions failed validation")
			}
			return printJSON(cmd, res)
		},
	}
	f := cmd.Flags()
	f.String("exam-file", "", "Exam file with questions and answer key (YAML or JSON)")
	f.String("answers", "", "Answers file (YAML or JSON)")
	f.Bool("partial-credit", true, "Award partial credit")
	f.Bool("negative-marking", true, "Apply negative marks")
	f.Float64("min-total", 0, "Floor for the auto-graded score")
	f.Int("precision", 2, "Decimal places in scores")
	_ = cmd.MarkFlagRequired("exam-file")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func rankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank a results file into a leaderboard, offline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := newEnv(cmd)
			results, err := examfile.LoadResults(e.v.GetString("results"))
			if err != nil {
				return err
			}
			return printJSON(cmd, ranking.Rank(results))
		},
	}
	cmd.Flags().String("results", "", "Results file (YAML or JSON list)")
	_ = cmd.MarkFlagRequired("results")
	return cmd
}
