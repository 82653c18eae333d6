package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fairtest/fairtest-backend/internal/identity"
)

func identityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage exam-scoped identities stored on this device",
	}
	cmd.AddCommand(identityNewCmd(), identityShowCmd(), identityForgetCmd())
	return cmd
}

func identityNewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Derive a fresh pseudonym for a wallet and exam",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := newEnv(cmd)
			wallet, examID := e.v.GetString("wallet"), e.v.GetString("exam")

			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := identity.NewDeriver().Derive(wallet, examID)
			if errors.Is(err, identity.ErrRandomnessUnavailable) {
				e.log.Error().Err(err).Msg("Identity derivation failed")
				return errors.New("could not generate identity, retry")
			}
			if err != nil {
				return err
			}

			ctx, cancel := e.context(cmd)
			defer cancel()
			if ttl := e.v.GetDuration("ttl"); ttl > 0 {
				err = store.PersistUntil(ctx, rec, time.Now().Add(ttl))
			} else {
				err = store.Persist(ctx, rec)
			}
			if errors.Is(err, identity.ErrIdentityExists) {
				return fmt.Errorf("an identity for %s is already stored; run `fairtest identity forget --exam %s` first", examID, examID)
			}
			if err != nil {
				return err
			}

			return printJSON(cmd, map[string]string{
				"exam_id":        rec.ExamID,
				"pseudonym_hash": rec.PseudonymHash,
			})
		},
	}
	f := cmd.Flags()
	f.String("wallet", "", "Wallet address (never leaves this device)")
	f.String("exam", "", "Exam id")
	f.Duration("ttl", 0, "Forget the identity after this long (0 = keep until forgotten)")
	_ = cmd.MarkFlagRequired("wallet")
	_ = cmd.MarkFlagRequired("exam")
	return cmd
}

func identityShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored identity for an exam",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := newEnv(cmd)
			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := e.context(cmd)
			defer cancel()
			rec, err := store.Load(ctx, e.v.GetString("exam"))
			if err != nil {
				return err
			}

			out := map[string]any{
				"exam_id":        rec.ExamID,
				"pseudonym_hash": rec.PseudonymHash,
				"created_at":     time.UnixMilli(rec.CreatedAt).UTC(),
				"verified":       rec.Verify(),
			}
			// Revealing the pseudonym proves ownership of a published result.
			if e.v.GetBool("reveal") {
				out["pseudonym"] = rec.Pseudonym
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().String("exam", "", "Exam id")
	cmd.Flags().Bool("reveal", false, "Also print the raw pseudonym")
	_ = cmd.MarkFlagRequired("exam")
	return cmd
}

func identityForgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Delete the stored identity for an exam",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := newEnv(cmd)
			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := e.context(cmd)
			defer cancel()
			if err := store.Forget(ctx, e.v.GetString("exam")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "identity forgotten")
			return nil
		},
	}
	cmd.Flags().String("exam", "", "Exam id")
	_ = cmd.MarkFlagRequired("exam")
	return cmd
}
