package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/argus-deps/argus/internal/lint"
	"github.com/argus-deps/argus/internal/pypi"
	"github.com/argus-deps/argus/internal/requirements"
)

const checkExampleUsage = `  # check requirements.txt in the current directory
  argus check

  # check several manifests at once
  argus check requirements.txt requirements-dev.txt

  # only report duplicate and conflicting declarations
  argus check --only duplicate-declaration,conflicting-constraints

  # confirm that every pinned version actually exists on the package index
  argus check --verify-pins`

// createCheckCommand initializes and returns a *cobra.Command that implements the 'check' CLI sub-command
func createCheckCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:          "check [flags] [manifest ...]",
		Aliases:      []string{"c"},
		Short:        "Parses one or more requirements manifests and reports consistency findings",
		Example:      checkExampleUsage,
		RunE:         runCheckCmd,
		SilenceUsage: true,
	}
	fset := cmd.Flags()
	fset.Bool("json", false, "specifies that the output should be formatted as JSON")
	fset.String("only", "", "comma-separated list of rule IDs to evaluate (default is all rules)")
	fset.String("config", "", "path to a YAML file that enables/disables rules and overrides severities")
	fset.Bool("list-rules", false, "print the available rules and exit")
	fset.Bool("verify-pins", false, "query the package index to confirm that each pinned version exists")

	return &cmd
}

// runCheckCmd implements the logic behind the 'check' CLI sub-command
func runCheckCmd(cmd *cobra.Command, args []string) error {
	if listRules, _ := cmd.Flags().GetBool("list-rules"); listRules {
		printRules(os.Stdout)
		return nil
	}

	selector, _ := cmd.Flags().GetString("only")
	rules, err := lint.Resolve(selector)
	if err != nil {
		return err
	}

	var conf *lint.Config
	if confPath, _ := cmd.Flags().GetString("config"); confPath != "" {
		if conf, err = lint.LoadConfig(confPath); err != nil {
			return err
		}
	}

	manifests := args
	if len(manifests) == 0 {
		manifests = []string{"requirements.txt"}
	}

	var reports []lint.Report
	for _, path := range manifests {
		f, err := requirements.ParseFile(path)
		if err != nil {
			return err
		}
		rep := lint.Run(f, rules, conf)
		if verify, _ := cmd.Flags().GetBool("verify-pins"); verify {
			extra, err := verifyPins(cmd.Context(), f)
			if err != nil {
				return err
			}
			rep.Findings = append(rep.Findings, extra...)
		}
		reports = append(reports, rep)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		out, _ := json.MarshalIndent(reports, "", "  ")
		fmt.Println(string(out))
	} else {
		writeReports(reports)
	}

	nerrs := 0
	for _, rep := range reports {
		nerrs += rep.Count(lint.SeverityError)
	}
	if nerrs > 0 {
		return fmt.Errorf("found %d error(s) across %d manifest(s)", nerrs, len(reports))
	}
	return nil
}

// verifyPins queries the package index for every pinned, index-sourced requirement in f and
// reports pins that name a release the index does not have.
func verifyPins(ctx context.Context, f *requirements.File) ([]lint.Finding, error) {
	client := pypi.NewFromEnv(http.DefaultClient)

	var (
		mu       sync.Mutex
		findings []lint.Finding
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for _, req := range f.Requirements {
		pin, ok := req.Pinned()
		if !ok || req.IsVCS() || req.URL != "" {
			continue
		}
		req := req
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			exists, err := client.HasVersion(req.Canonical(), pin)
			if err != nil {
				return fmt.Errorf("unable to verify %s==%s: %w", req.Name, pin, err)
			}
			if exists {
				return nil
			}
			mu.Lock()
			findings = append(findings, lint.Finding{
				RuleID:   "unknown-release",
				Severity: lint.SeverityError,
				File:     f.Name,
				Line:     req.Line,
				Package:  req.Canonical(),
				Message:  fmt.Sprintf("%s==%s does not match any release on the package index", req.Name, pin),
				Evidence: map[string]string{"pin": pin},
			})
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return findings, nil
}

// writeReports prints findings to stdout in a compiler-diagnostic style, one line per finding
func writeReports(reports []lint.Report) {
	for _, rep := range reports {
		for _, f := range rep.Findings {
			fmt.Printf("%s:%d: %s: %s\n", rep.File, f.Line, severityLabel(f.Severity), f.Message)
		}
	}
	nfindings := 0
	for _, rep := range reports {
		nfindings += len(rep.Findings)
	}
	if nfindings == 0 {
		fmt.Println(color.GreenString("no findings"))
	}
}

// severityLabel returns the colorized display label for a finding severity
func severityLabel(sev lint.Severity) string {
	switch sev {
	case lint.SeverityError:
		return color.New(color.FgRed, color.Bold).Sprint("error")
	case lint.SeverityWarning:
		return color.YellowString("warning")
	default:
		return color.CyanString("info")
	}
}

// printRules writes the ID, title, and description of every registered rule to w
func printRules(w io.Writer) {
	bold := color.New(color.Bold)
	for _, r := range lint.List() {
		bold.Fprintf(w, "%s", r.ID())
		fmt.Fprintf(w, " (%s): %s\n", r.Severity(), r.Title())
		fmt.Fprintf(w, "    %s\n", r.Description())
	}
}
