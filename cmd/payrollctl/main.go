/*
main.go - payrollctl, the offline payroll calculator

PURPOSE:
  Runs the payroll engine against YAML files without a server: load a
  reference-data file, load a batch file, compute the period and print the
  runs. Useful for reviewing a new tax year's reference data before it is
  deployed, and for reproducing a disputed pay stub.

COMMANDS:
  compute    Process a batch file and print runs and totals
  validate   Parse reference data and (optionally) a batch file
  brackets   List the bracket sets in a reference file
  evaluate   Annual tax for an income under one bracket set

YEAR-TO-DATE:
  By default every invocation starts from an empty wage ledger. Pass --db to
  keep periods and year-to-date wages in a SQLite file across invocations.

EXAMPLES:
  payrollctl compute -r factory/testdata/reference.yaml -b factory/testdata/batch.yaml
  payrollctl evaluate -r reference.yaml --jurisdiction federal --year 2025 --income 52000

SEE ALSO:
  - factory/reference.go, factory/batch.go: File formats
*/
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
