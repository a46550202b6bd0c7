package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/logger"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/memory"
	"github.com/warp/payroll-engine/store/sqlite"
	"gopkg.in/yaml.v3"
)

type rootOptions struct {
	reference string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "payrollctl",
		Short:         "Compute payroll periods from YAML files",
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVarP(&opts.reference, "reference", "r", "reference.yaml", "reference data file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")

	cmd.AddCommand(
		newComputeCmd(opts),
		newValidateCmd(opts),
		newBracketsCmd(opts),
		newEvaluateCmd(opts),
	)
	return cmd
}

// =============================================================================
// COMPUTE
// =============================================================================

type computeOptions struct {
	batch   string
	db      string
	format  string
	workers int
	approve bool
}

func newComputeCmd(root *rootOptions) *cobra.Command {
	opts := &computeOptions{}
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Process a batch file and print runs and totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := compute(cmd.Context(), root, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.format, res)
		},
	}
	cmd.Flags().StringVarP(&opts.batch, "batch", "b", "", "batch input file")
	cmd.Flags().StringVar(&opts.db, "db", "", "SQLite file keeping periods and year-to-date wages")
	cmd.Flags().StringVarP(&opts.format, "format", "o", "table", "output format: table, json or yaml")
	cmd.Flags().IntVar(&opts.workers, "workers", payroll.DefaultWorkers, "parallel run computations")
	cmd.Flags().BoolVar(&opts.approve, "approve", false, "approve every run after processing")
	_ = cmd.MarkFlagRequired("batch")
	return cmd
}

func compute(ctx context.Context, root *rootOptions, opts *computeOptions, logOut io.Writer) (payroll.ProcessResult, error) {
	ref, err := factory.LoadReference(root.reference)
	if err != nil {
		return payroll.ProcessResult{}, err
	}
	batch, err := factory.LoadBatch(opts.batch, ref.Settings)
	if err != nil {
		return payroll.ProcessResult{}, err
	}

	var store payroll.PeriodStore = memory.New()
	if opts.db != "" {
		db, err := sqlite.New(opts.db)
		if err != nil {
			return payroll.ProcessResult{}, err
		}
		defer db.Close()
		store = db
	}

	log := logger.New(logger.Config{Env: "development", Level: root.logLevel, Output: logOut})
	m := payroll.NewManager(store, ref.Builder(),
		payroll.WithWorkers(opts.workers),
		payroll.WithLogger(log.Component("payroll")),
	)

	p, err := m.OpenPeriod(ctx, batch.Period, batch.PayDate, ref.Settings.Currency)
	if err != nil {
		return payroll.ProcessResult{}, err
	}
	res, err := m.Process(ctx, p.ID, ref.Settings, batch.Inputs)
	if err != nil {
		return payroll.ProcessResult{}, err
	}
	if !opts.approve {
		return res, nil
	}
	for _, r := range res.Period.Runs {
		if _, err := m.ApproveRun(ctx, p.ID, r.EmployeeID); err != nil {
			return payroll.ProcessResult{}, err
		}
	}
	res.Period, err = m.GetPeriod(ctx, p.ID)
	return res, err
}

func render(w io.Writer, format string, res payroll.ProcessResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		// Round-trip through JSON so decimals and dates keep their JSON form.
		data, err := json.Marshal(res)
		if err != nil {
			return err
		}
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return err
		}
		return yaml.NewEncoder(w).Encode(doc)
	case "table":
		return renderTable(w, res)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func renderTable(w io.Writer, res payroll.ProcessResult) error {
	p := res.Period
	fmt.Fprintf(w, "Period %s  %s..%s  pay date %s  [%s]\n\n", p.ID, p.Start, p.End, p.PayDate, p.Status)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "EMPLOYEE\tGROSS\tPRE-TAX\tTAXABLE\tTAXES\tPOST-TAX\tNET\tSTATUS\t")
	for _, r := range p.Runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.EmployeeID, money(r.GrossPay), money(r.PreTaxDeductions()), money(r.TaxableWages),
			money(r.TotalTaxes()), money(r.PostTaxDeductions()), money(r.NetPay), r.Status)
	}
	t := res.Totals
	fmt.Fprintf(tw, "TOTAL (%d)\t%s\t\t\t%s\t%s\t%s\t\t\n",
		t.EmployeeCount, money(t.TotalGross), money(t.TotalTaxes), money(t.TotalDeductions), money(t.TotalNet))
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, s := range res.Skipped {
		fmt.Fprintf(w, "skipped %s: %s\n", s.EmployeeID, s.Reason)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	return nil
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// =============================================================================
// REFERENCE DATA
// =============================================================================

func newValidateCmd(root *rootOptions) *cobra.Command {
	var batchPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse reference data and (optionally) a batch file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := factory.LoadReference(root.reference)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "reference ok: %d bracket sets, years %v\n", len(ref.Table.Keys()), ref.Table.Years())
			if batchPath == "" {
				return nil
			}
			b, err := factory.LoadBatch(batchPath, ref.Settings)
			if err != nil {
				return err
			}
			for _, in := range b.Inputs {
				if err := in.Employee.Validate(); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "batch ok: %d employees, %s, pay date %s\n", len(b.Inputs), b.Period, b.PayDate)
			return nil
		},
	}
	cmd.Flags().StringVarP(&batchPath, "batch", "b", "", "batch input file")
	return cmd
}

func newBracketsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "brackets",
		Short: "List the bracket sets in a reference file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := factory.LoadReference(root.reference)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SET\tBANDS\tTOP RATE")
			for _, k := range ref.Table.Keys() {
				set, err := ref.Table.Resolve(k)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", k, len(set), set[len(set)-1].Rate)
			}
			return tw.Flush()
		},
	}
}

type evaluateOptions struct {
	jurisdiction string
	state        string
	status       string
	year         int
	income       string
}

func newEvaluateCmd(root *rootOptions) *cobra.Command {
	opts := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Annual tax for an income under one bracket set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := factory.LoadReference(root.reference)
			if err != nil {
				return err
			}
			income, err := decimal.NewFromString(opts.income)
			if err != nil {
				return fmt.Errorf("income: %w", err)
			}
			key := payroll.BracketKey{
				Jurisdiction: payroll.Jurisdiction(strings.ToLower(opts.jurisdiction)),
				State:        opts.state,
				FilingStatus: payroll.FilingStatus(strings.ToLower(opts.status)),
				Year:         opts.year,
			}
			set, err := ref.Table.Resolve(key)
			if err != nil {
				return err
			}
			tax := generic.Cents(payroll.Evaluate(set, income))
			fmt.Fprintf(cmd.OutOrStdout(), "%s: tax on %s = %s\n", key, income.StringFixed(2), tax.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.jurisdiction, "jurisdiction", "federal", "federal, state or local")
	cmd.Flags().StringVar(&opts.state, "state", "", "state or locality code")
	cmd.Flags().StringVar(&opts.status, "filing-status", "single", "filing status")
	cmd.Flags().IntVar(&opts.year, "year", generic.Today().Year(), "tax year")
	cmd.Flags().StringVar(&opts.income, "income", "0", "annual taxable income")
	return cmd
}
