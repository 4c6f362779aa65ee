package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/accounter/internal/adapter/http/dto"
)

type options struct {
	baseURL string
	timeout time.Duration
	wait    time.Duration
}

func (o *options) client() *client {
	return newClient(o.baseURL, o.timeout, o.wait)
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "accounter-cli",
		Short:         "Accounter CLI tool",
		Long:          `A command line interface for holding, committing and inspecting ledger plans.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the Accounter API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().DurationVar(&opts.wait, "wait", 0, "Keep retrying not-ready responses for this long")

	rootCmd.AddCommand(
		holdCmd(opts),
		finalizeCmd(opts, "commit", "Commit held batches of a plan"),
		finalizeCmd(opts, "rollback", "Roll back held batches of a plan"),
		accountCmd(opts),
		ledgerCmd(opts),
	)

	return rootCmd
}

func holdCmd(opts *options) *cobra.Command {
	var file, clock, key string

	cmd := &cobra.Command{
		Use:   "hold",
		Short: "Hold a plan read from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var plan dto.PlanRequest
			if err := readJSONFile(file, &plan); err != nil {
				return err
			}

			var resp dto.ClockResponse
			req := dto.HoldRequest{Plan: plan, Clock: clock}
			if err := opts.client().post(cmd.Context(), "/api/v1/holds", req, key, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Plan JSON file, - for stdin")
	cmd.Flags().StringVar(&clock, "clock", "", "Clock token the hold must observe")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Idempotency key for the request")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// finalizeCmd builds the commit and rollback commands. The file holds the
// same plan document that was held; its id is ignored in favour of the
// argument.
func finalizeCmd(opts *options, action, short string) *cobra.Command {
	var file, clock, key string

	cmd := &cobra.Command{
		Use:   action + " <plan-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plan dto.PlanRequest
			if err := readJSONFile(file, &plan); err != nil {
				return err
			}

			var resp dto.ClockResponse
			req := dto.FinalizeRequest{Batches: plan.Batches, Clock: clock}
			path := "/api/v1/plans/" + url.PathEscape(args[0]) + "/" + action
			if err := opts.client().post(cmd.Context(), path, req, key, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Plan JSON file, - for stdin")
	cmd.Flags().StringVar(&clock, "clock", "", "Clock token returned by the hold")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Idempotency key for the request")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func accountCmd(opts *options) *cobra.Command {
	var clock string

	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account queries",
	}
	cmd.PersistentFlags().StringVar(&clock, "clock", "", "Clock token the read must observe")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var resp dto.AccountResponse
			if err := opts.client().get(cmd.Context(), fmt.Sprintf("/api/v1/accounts/%d", id), clock, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	balanceCmd := &cobra.Command{
		Use:   "balance <id>",
		Short: "Show an account balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var resp dto.BalanceResponse
			if err := opts.client().get(cmd.Context(), fmt.Sprintf("/api/v1/accounts/%d/balance", id), clock, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.AddCommand(getCmd, balanceCmd)
	return cmd
}

func ledgerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	consistencyCmd := &cobra.Command{
		Use:   "consistency",
		Short: "Check that every currency sums to zero",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.ConsistencyResponse
			if err := opts.client().get(cmd.Context(), "/api/v1/admin/consistency", "", &resp); err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !resp.Consistent {
				return fmt.Errorf("consistency check FAILED")
			}
			return nil
		},
	}

	balancesCmd := &cobra.Command{
		Use:   "balances",
		Short: "List all balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.ListBalancesResponse
			if err := opts.client().get(cmd.Context(), "/api/v1/admin/balances", "", &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	offsetsCmd := &cobra.Command{
		Use:   "offsets",
		Short: "List consumed log offsets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.ListOffsetsResponse
			if err := opts.client().get(cmd.Context(), "/api/v1/admin/offsets", "", &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	planCmd := &cobra.Command{
		Use:   "plan <plan-id>",
		Short: "Show replayed markers of a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.ListPlanMarkersResponse
			if err := opts.client().get(cmd.Context(), "/api/v1/admin/plans/"+url.PathEscape(args[0]), "", &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.AddCommand(consistencyCmd, balancesCmd, offsetsCmd, planCmd)
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid account id %q", s)
	}
	return id, nil
}

func readJSONFile(path string, out any) error {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
