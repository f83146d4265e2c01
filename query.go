package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"text/template"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/theckman/yacspin"

	"github.com/argus-deps/argus/argusapi"
)

var (
	formatAsJSON   bool
	formatAsList   bool
	formatTemplate string
)

const (
	goTemplateArgUsage = `provides a Go text template to format the output.
Each result is an instance of a struct with the fields shown in the default
JSON output, ex: {{.Project}}, {{.ManifestPath}}, {{.Package}}, {{.Raw}}.`
	declarationsExampleUsage = `  # list every manifest that declares numpy
  argus query declarations numpy

  # same, but as a tabular list
  argus q d numpy --list

  # only the manifest paths, one per line
  argus q d numpy --format '{{.Project}}/{{.ManifestPath}}'`
)

func tty() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// createQueryCommand initializes and returns a *cobra.Command that implements the 'query' CLI sub-command
func createQueryCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:          "query ...",
		Aliases:      []string{"q"},
		Short:        "Executes a query against the argus registry",
		SilenceUsage: true,
	}
	fset := cmd.PersistentFlags()
	fset.String("server-addr", os.Getenv("ARGUS_SERVER_ADDR"), "the TCP host and port of the argus server (default is $ARGUS_SERVER_ADDR environment variable)")
	fset.BoolVar(&formatAsJSON, "json", false, "specifies that the output should be formatted as JSON")
	fset.BoolVar(&formatAsList, "list", false, "specifies that the output should be formatted as a tabular list")
	fset.StringVarP(&formatTemplate, "format", "f", "", goTemplateArgUsage)
	fset.Bool("insecure", false, "do not use TLS when connecting to the argus server")

	listProjectsCmd := cobra.Command{
		Use:          "list-projects [pattern]",
		Aliases:      []string{"lp"},
		Short:        "Outputs the list of tracked projects that match a provided glob pattern",
		RunE:         runListProjectsCmd,
		SilenceUsage: true,
	}
	cmd.AddCommand(&listProjectsCmd)

	listManifestsCmd := cobra.Command{
		Use:          "list-manifests project",
		Aliases:      []string{"lm"},
		Short:        "Outputs the manifests ingested for the specified project",
		RunE:         runListManifestsCmd,
		SilenceUsage: true,
	}
	cmd.AddCommand(&listManifestsCmd)

	listPackagesCmd := cobra.Command{
		Use:          "list-packages [pattern]",
		Aliases:      []string{"lpk"},
		Short:        "Outputs the list of declared packages that match a provided glob pattern",
		RunE:         runListPackagesCmd,
		SilenceUsage: true,
	}
	cmd.AddCommand(&listPackagesCmd)

	declarationsCmd := cobra.Command{
		Use:          "declarations package",
		Example:      declarationsExampleUsage,
		Aliases:      []string{"d", "decls"},
		Short:        "Outputs every manifest declaration of the specified package across all projects",
		RunE:         runDeclarationsCmd,
		SilenceUsage: true,
	}
	cmd.AddCommand(&declarationsCmd)

	conflictsCmd := cobra.Command{
		Use:          "conflicts project",
		Aliases:      []string{"c"},
		Short:        "Outputs packages that are declared more than once within a manifest of the specified project",
		RunE:         runConflictsCmd,
		SilenceUsage: true,
	}
	cmd.AddCommand(&conflictsCmd)

	return &cmd
}

// runListProjectsCmd implements the logic behind the 'query list-projects' CLI sub-command
func runListProjectsCmd(cmd *cobra.Command, args []string) error {
	conf, err := parseSharedQueryOpts(cmd, args)
	if err != nil {
		return err
	}
	if len(args) > 1 {
		return fmt.Errorf("At most one project match pattern may be provided")
	}
	filter := ""
	if len(args) == 1 {
		filter = args[0]
	}
	if err := validateOutputOpts(); err != nil {
		return err
	}

	updateSpinner, stopSpinner := startSpinner()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client, err := conf.dialServer()
	if err != nil {
		stopSpinner()
		return err
	}
	defer func() { _ = client.Close() }()

	var results []argusapi.Project
	for pageToken, done := "", false; !done; {
		updateSpinner("retrieving projects")
		resp, err := client.ListProjects(ctx, filter, pageToken)
		if err != nil {
			stopSpinner()
			return err
		}
		results = append(results, resp.Projects...)
		pageToken = resp.NextPageToken
		done = (pageToken == "")
	}
	stopSpinner()

	return writeResults(os.Stdout, results, "Project", func(p argusapi.Project) string {
		return p.Name
	})
}

// runListManifestsCmd implements the logic behind the 'query list-manifests' CLI sub-command
func runListManifestsCmd(cmd *cobra.Command, args []string) error {
	conf, err := parseSharedQueryOpts(cmd, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("The project name must be provided")
	}
	if err := validateOutputOpts(); err != nil {
		return err
	}

	updateSpinner, stopSpinner := startSpinner()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client, err := conf.dialServer()
	if err != nil {
		stopSpinner()
		return err
	}
	defer func() { _ = client.Close() }()

	updateSpinner("retrieving manifests for " + args[0])
	resp, err := client.ListManifests(ctx, args[0])
	stopSpinner()
	if err != nil {
		return err
	}
	if len(resp.Manifests) == 0 {
		debugLog("found no manifests for project", "project", args[0])
		return nil
	}

	return writeResults(os.Stdout, resp.Manifests, "Path\tRevision\tIngested", func(m argusapi.Manifest) string {
		return fmt.Sprintf("%s\t%s\t%s", m.Path, m.Revision, m.IngestedAt.Format(time.RFC3339))
	})
}

// runListPackagesCmd implements the logic behind the 'query list-packages' CLI sub-command
func runListPackagesCmd(cmd *cobra.Command, args []string) error {
	conf, err := parseSharedQueryOpts(cmd, args)
	if err != nil {
		return err
	}
	if len(args) > 1 {
		return fmt.Errorf("At most one package match pattern may be provided")
	}
	filter := ""
	if len(args) == 1 {
		filter = args[0]
	}
	if err := validateOutputOpts(); err != nil {
		return err
	}

	updateSpinner, stopSpinner := startSpinner()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client, err := conf.dialServer()
	if err != nil {
		stopSpinner()
		return err
	}
	defer func() { _ = client.Close() }()

	var results []argusapi.Package
	for pageToken, done := "", false; !done; {
		updateSpinner("retrieving packages")
		resp, err := client.ListPackages(ctx, filter, pageToken)
		if err != nil {
			stopSpinner()
			return err
		}
		results = append(results, resp.Packages...)
		pageToken = resp.NextPageToken
		done = (pageToken == "")
	}
	stopSpinner()

	return writeResults(os.Stdout, results, "Package", func(p argusapi.Package) string {
		return p.Name
	})
}

// runDeclarationsCmd implements the logic behind the 'query declarations' CLI sub-command
func runDeclarationsCmd(cmd *cobra.Command, args []string) error {
	conf, err := parseSharedQueryOpts(cmd, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("The package name must be provided")
	}
	if err := validateOutputOpts(); err != nil {
		return err
	}

	updateSpinner, stopSpinner := startSpinner()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client, err := conf.dialServer()
	if err != nil {
		stopSpinner()
		return err
	}
	defer func() { _ = client.Close() }()

	var results []argusapi.DeclarationDetail
	for pageToken, done := "", false; !done; {
		updateSpinner("retrieving declarations of " + args[0])
		resp, err := client.ListDeclarations(ctx, args[0], pageToken)
		if err != nil {
			stopSpinner()
			return err
		}
		results = append(results, resp.Declarations...)
		pageToken = resp.NextPageToken
		done = (pageToken == "")
	}
	stopSpinner()

	if len(results) == 0 {
		debugLog("found no declarations for package", "package", args[0])
		return nil
	}
	return writeResults(os.Stdout, results, "Project\tManifest\tLine\tRequirement", func(d argusapi.DeclarationDetail) string {
		return fmt.Sprintf("%s\t%s\t%d\t%s", d.Project, d.ManifestPath, d.Line, d.Raw)
	})
}

// runConflictsCmd implements the logic behind the 'query conflicts' CLI sub-command
func runConflictsCmd(cmd *cobra.Command, args []string) error {
	conf, err := parseSharedQueryOpts(cmd, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("The project name must be provided")
	}
	if err := validateOutputOpts(); err != nil {
		return err
	}

	updateSpinner, stopSpinner := startSpinner()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client, err := conf.dialServer()
	if err != nil {
		stopSpinner()
		return err
	}
	defer func() { _ = client.Close() }()

	updateSpinner("retrieving conflicts for " + args[0])
	resp, err := client.ListConflicts(ctx, args[0])
	stopSpinner()
	if err != nil {
		return err
	}
	if len(resp.Conflicts) == 0 {
		debugLog("found no conflicts for project", "project", args[0])
		return nil
	}

	// flatten to one row per conflicting declaration for list/template output
	var rows []argusapi.DeclarationDetail
	for _, c := range resp.Conflicts {
		rows = append(rows, c.Declarations...)
	}
	if formatAsJSON {
		output, _ := json.Marshal(resp.Conflicts)
		os.Stdout.Write(output)
		fmt.Println()
		return nil
	}
	return writeResults(os.Stdout, rows, "Package\tManifest\tLine\tRequirement", func(d argusapi.DeclarationDetail) string {
		return fmt.Sprintf("%s\t%s\t%d\t%s", d.Package, d.ManifestPath, d.Line, d.Raw)
	})
}

// parseSharedQueryOpts reads the process environment variables and CLI flags to populate a clientConfig
// instance
func parseSharedQueryOpts(cmd *cobra.Command, _ []string) (clientConfig, error) {
	// parse parameters and setup options
	var (
		opts []clientOption
		conf clientConfig
	)
	opts = append(opts, readClientConfigEnv()...)
	opts = append(opts, readClientConfigFlags(cmd.Flags())...)
	for _, fn := range opts {
		if err := fn(&conf); err != nil {
			return clientConfig{}, fmt.Errorf("could not apply client config option: %w", err)
		}
	}
	// validate config
	if conf.serverAddr == "" {
		return clientConfig{}, fmt.Errorf("the argus server address must be specified")
	}

	return conf, nil
}

// validateOutputOpts verifies that at most one output format was requested, defaulting to JSON
// if none was
func validateOutputOpts() error {
	formatAsJSON = formatAsJSON || !(formatAsList || formatTemplate != "")
	if !xor(formatAsJSON, formatAsList, formatTemplate != "") {
		return fmt.Errorf("Only one of --json, --list, or --format may be specified")
	}
	return nil
}

// xor implements a boolean exclusive OR for a set of values.  This is necessary because Go does not
// provide XOR operators (boolean or bitwise)
func xor(vs ...bool) bool {
	if len(vs) == 0 {
		return false
	}
	n := 0
	for _, v := range vs {
		if v {
			n++
		}
		if n > 1 {
			return false
		}
	}
	return n == 1
}

// startSpinner initializes and starts a "spinner" for the console and returns
// a function for updating the spinner's message and another to stop it.
func startSpinner() (update func(string), done func()) {
	update = func(string) {}
	done = func() {}

	// no-op if we're not writing to a TTY
	if tty() {
		spinner, _ := yacspin.New(yacspin.Config{
			CharSet:         yacspin.CharSets[11],
			Frequency:       300 * time.Millisecond,
			Message:         "",
			Prefix:          "querying the registry ",
			Suffix:          " ",
			SuffixAutoColon: false,
		})
		_ = spinner.Start()

		update = func(msg string) {
			spinner.Message(msg)
		}
		done = func() {
			_ = spinner.Stop()
		}
	}
	return update, done
}

// writeResults writes the contents of results to the provided io.Writer based on the configured
// output options.  The header and line callback define the tabular list layout, with columns
// separated by tabs.
func writeResults[T any](w io.Writer, results []T, header string, line func(T) string) error {
	var err error
	switch {
	case formatTemplate != "":
		// apply the provided text template
		tt := template.New("item")
		tt, err = tt.Parse(formatTemplate)
		if err != nil {
			return fmt.Errorf("Invalid Go text template specified: %w", err)
		}
		for _, e := range results {
			if err := tt.Execute(w, e); err != nil {
				return fmt.Errorf("Error applying Go text template: %w", err)
			}
			fmt.Fprintln(w)
		}

	case formatAsList:
		// output a tabular list
		tw := tabwriter.NewWriter(w, 10, 4, 2, ' ', 0)
		defer func() { _ = tw.Flush() }()
		if _, err := tw.Write([]byte(header + "\n")); err != nil {
			return fmt.Errorf("Error writing tabular output: %w", err)
		}
		for _, e := range results {
			if _, err := tw.Write([]byte(line(e) + "\n")); err != nil {
				return fmt.Errorf("Error writing tabular output: %w", err)
			}
		}

	default:
		// output JSON
		output, _ := json.Marshal(results)
		_, _ = w.Write(output)
		fmt.Fprintln(w)
	}
	return nil
}
