package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/argus-deps/argus/argusapi"
	"github.com/argus-deps/argus/internal/git"
	"github.com/argus-deps/argus/internal/requirements"
)

const updateExampleUsage = `  argus update -p . --project vposer
	argus update --path $HOME/dev/py/foo
	argus update -f ./requirements-dev.txt --project foo --revision v1.4.0
	argus update -p $HOME/dev/py/bar --manifest requirements/prod.txt`

// createUpdateCommand initializes and returns a *cobra.Command that implements the 'update' CLI sub-command
func createUpdateCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:          "update (-p|--path path/to/project/on/disk | -f|--file path/to/requirements.txt)",
		Short:        "Processes a requirements manifest and updates the argus registry with its declarations",
		Example:      updateExampleUsage,
		RunE:         runUpdateCmd,
		SilenceUsage: true,
	}
	fset := cmd.Flags()
	fset.String("server-addr", os.Getenv("ARGUS_SERVER_ADDR"), "the TCP host and port of the argus server (default is $ARGUS_SERVER_ADDR environment variable)")
	fset.StringP("path", "p", "", "specifies the local path on disk to a project repository")
	fset.StringP("file", "f", "", "specifies the path to a single requirements manifest")
	fset.String("project", "", "the project the manifest belongs to (default is the repository folder name)")
	fset.String("manifest", "requirements.txt", "the manifest path within the repository, used with --path")
	fset.String("revision", "", "the project revision the manifest was read at (default is read from git)")
	fset.Bool("insecure", false, "do not use TLS when connecting to the argus server")

	return &cmd
}

// runUpdateCmd implements the 'update' CLI sub-command.
func runUpdateCmd(cmd *cobra.Command, _ []string) error {
	// parse parameters and setup options
	var (
		opts []clientOption
		conf clientConfig
	)
	opts = append(opts, readClientConfigEnv()...)
	opts = append(opts, readClientConfigFlags(cmd.Flags())...)
	for _, fn := range opts {
		if err := fn(&conf); err != nil {
			return fmt.Errorf("Could not apply client config option: %w", err)
		}
	}

	// validate config
	if conf.serverAddr == "" {
		return fmt.Errorf("The argus server address must be specified")
	}
	repoPath, _ := cmd.Flags().GetString("path")
	filePath, _ := cmd.Flags().GetString("file")
	if repoPath == "" && filePath == "" {
		return fmt.Errorf("Either a repository path (--path) or a manifest file (--file) must be specified")
	}
	if !xor(repoPath != "", filePath != "") {
		return fmt.Errorf("Either a repository path (--path) or a manifest file (--file) can be specified, but not both")
	}

	var (
		info manifestInfo
		err  error
	)
	switch {
	case repoPath != "":
		// read the manifest from a project repository on disk
		manifestRel, _ := cmd.Flags().GetString("manifest")
		info, err = getManifestInfoFromRepo(repoPath, manifestRel)
	case filePath != "":
		// read a single manifest file directly
		info, err = getManifestInfoFromFile(filePath)
	}
	if err != nil {
		return err
	}

	if project, _ := cmd.Flags().GetString("project"); project != "" {
		info.Project = project
	}
	if revision, _ := cmd.Flags().GetString("revision"); revision != "" {
		info.Revision = revision
	}
	if info.Project == "" {
		return fmt.Errorf("The project name must be specified (--project)")
	}
	if len(info.File.Errors) > 0 {
		for _, perr := range info.File.Errors {
			fmt.Fprintln(os.Stderr, perr)
		}
		return fmt.Errorf("%s contains %d invalid line(s), refusing to update the registry", info.File.Name, len(info.File.Errors))
	}

	// send updates to the argus server
	if err := applyUpdates(conf, info); err != nil {
		return fmt.Errorf("Unable to update the argus registry: %w", err)
	}
	return nil
}

// getManifestInfoFromRepo parses the manifest at manifestRel within the project repository at dir,
// reading the project name and revision from the repository itself.
func getManifestInfoFromRepo(dir, manifestRel string) (manifestInfo, error) {
	repoDir := path.Clean(dir)

	f, err := requirements.ParseFile(filepath.Join(repoDir, manifestRel))
	if err != nil {
		return manifestInfo{}, err
	}

	// resolve the revision from the repo: prefer a version tag at HEAD, fall back to the commit hash
	revision := ""
	repo, err := git.Open(repoDir)
	if err != nil {
		return manifestInfo{}, err
	}
	tags, err := repo.VersionTags()
	if err != nil {
		return manifestInfo{}, fmt.Errorf("unable to read version tags from the repo: %w", err)
	}
	switch len(tags) {
	case 1:
		revision = tags[0]
	case 0:
		if revision, err = repo.HeadCommit(); err != nil {
			return manifestInfo{}, fmt.Errorf("unable to resolve the current commit: %w", err)
		}
	default:
		return manifestInfo{}, fmt.Errorf("Multiple version tags exist at the current commit. Please specify a revision explicitly. tags=%v", tags)
	}

	abs, err := filepath.Abs(repoDir)
	if err != nil {
		return manifestInfo{}, err
	}
	info := manifestInfo{
		Project:  filepath.Base(abs),
		Path:     manifestRel,
		Revision: revision,
		File:     f,
	}
	debugLog("parsed manifest", "project", info.Project, "path", info.Path, "revision", info.Revision,
		"declarations", len(f.Requirements))
	return info, nil
}

// getManifestInfoFromFile parses a single manifest file.  The project name and revision must be
// supplied via CLI flags.
func getManifestInfoFromFile(p string) (manifestInfo, error) {
	f, err := requirements.ParseFile(p)
	if err != nil {
		return manifestInfo{}, err
	}
	info := manifestInfo{
		Path: filepath.Base(p),
		File: f,
	}
	debugLog("parsed manifest", "path", p, "declarations", len(f.Requirements))
	return info, nil
}

// applyUpdates calls the argus server to replace the stored declarations for the manifest
func applyUpdates(conf clientConfig, info manifestInfo) (err error) {
	// create the client and call the server
	ctx := context.Background()
	client, err := conf.dialServer()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if _, err := client.CreateProject(ctx, argusapi.Project{Name: info.Project}); err != nil {
		return err
	}

	req := argusapi.PutManifestRequest{
		Path:         info.Path,
		Revision:     info.Revision,
		Declarations: make([]argusapi.Declaration, len(info.File.Requirements)),
	}
	for i, r := range info.File.Requirements {
		req.Declarations[i] = toDeclaration(r)
	}
	resp, err := client.PutManifest(ctx, info.Project, req)
	if err != nil {
		return err
	}
	fmt.Printf("updated %s/%s with %d declaration(s)\n", resp.Project, resp.Path, resp.DeclarationCount)
	return nil
}

// toDeclaration maps a parsed requirement onto its API representation
func toDeclaration(r requirements.Requirement) argusapi.Declaration {
	d := argusapi.Declaration{
		Package:     r.Canonical(),
		WrittenName: r.Name,
		Raw:         r.Raw,
		Constraint:  r.Specifiers.String(),
		Line:        r.Line,
	}
	if pin, ok := r.Pinned(); ok {
		d.PinnedVersion = pin
	}
	if len(r.Extras) > 0 {
		d.Extras = strings.Join(r.Extras, ",")
	}
	if r.VCS != nil {
		d.VCSURL = r.VCS.URL
		d.VCSRef = r.VCS.Ref
	}
	return d
}

// manifestInfo represents one parsed manifest plus the registry coordinates it will be stored under.
type manifestInfo struct {
	// the owning project, ex: vposer
	Project string
	// the manifest path within the project, ex: requirements.txt
	Path string
	// the project revision the manifest was read at, ex: v2.0.2 or a commit hash
	Revision string
	// the parsed manifest
	File *requirements.File
}
