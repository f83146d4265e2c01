package requirements

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"
)

// A ParseError describes a manifest line that could not be parsed.  The
// original line number and text are preserved so that callers can report
// positioned diagnostics.
type ParseError struct {
	File string
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// A File is a parsed requirements manifest.  Requirement order matches the
// source file.  Lines that failed to parse are collected in Errors rather
// than aborting the parse, so a single bad line does not hide the rest of
// the manifest.
type File struct {
	// Name is the manifest path or label passed to Parse.
	Name string
	// Requirements holds the successfully parsed entries, in file order.
	Requirements []Requirement
	// Errors holds one entry per malformed line.
	Errors []*ParseError
	// Includes lists the targets of "-r/--requirement" lines, unresolved.
	Includes []string
	// IndexURLs collects "--index-url" and "--extra-index-url" values.
	IndexURLs []string
	// FindLinks collects "-f/--find-links" values.
	FindLinks []string
}

// ParseFile reads and parses the manifest at path.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open manifest: %w", err)
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse reads a requirements manifest from r.  The returned error is non-nil
// only for I/O failures; malformed lines are reported via File.Errors.
func Parse(r io.Reader, name string) (*File, error) {
	f := File{Name: name}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		startLine := lineNo
		line := sc.Text()

		// join backslash continuations into one logical line
		for strings.HasSuffix(line, `\`) && sc.Scan() {
			lineNo++
			line = strings.TrimSuffix(line, `\`) + sc.Text()
		}

		line = stripComment(line)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "-") {
			if err := f.parseOptionLine(line, startLine); err != nil {
				f.addError(name, startLine, line, err)
			}
			continue
		}

		req, err := ParseRequirement(line)
		if err != nil {
			f.addError(name, startLine, line, err)
			continue
		}
		req.Line = startLine
		req.Raw = line
		f.Requirements = append(f.Requirements, req)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	return &f, nil
}

func (f *File) addError(name string, line int, text string, err error) {
	f.Errors = append(f.Errors, &ParseError{File: name, Line: line, Text: text, Err: err})
}

// parseOptionLine handles pip global option lines ("-r file", "--index-url url", ...).
func (f *File) parseOptionLine(line string, lineNo int) error {
	opt, arg := splitOption(line)
	switch opt {
	case "-r", "--requirement":
		if arg == "" {
			return fmt.Errorf("%s requires a file argument", opt)
		}
		f.Includes = append(f.Includes, arg)
	case "-e", "--editable":
		if arg == "" {
			return fmt.Errorf("%s requires a target argument", opt)
		}
		req, err := ParseRequirement(arg)
		if err != nil {
			return fmt.Errorf("invalid editable target: %w", err)
		}
		req.Editable = true
		req.Line = lineNo
		req.Raw = line
		f.Requirements = append(f.Requirements, req)
	case "-i", "--index-url", "--extra-index-url":
		if arg == "" {
			return fmt.Errorf("%s requires a URL argument", opt)
		}
		f.IndexURLs = append(f.IndexURLs, arg)
	case "-f", "--find-links":
		if arg == "" {
			return fmt.Errorf("%s requires a URL or path argument", opt)
		}
		f.FindLinks = append(f.FindLinks, arg)
	default:
		return fmt.Errorf("unsupported option %q", opt)
	}
	return nil
}

// splitOption splits an option line into the option token and its argument,
// accepting both "--opt value" and "--opt=value" forms.
func splitOption(line string) (opt, arg string) {
	if idx := strings.IndexAny(line, " \t"); idx != -1 {
		opt, arg = line[:idx], strings.TrimSpace(line[idx+1:])
	} else {
		opt = line
	}
	if idx := strings.Index(opt, "="); idx != -1 && strings.HasPrefix(opt, "--") {
		opt, arg = opt[:idx], opt[idx+1:]
	}
	return opt, arg
}

// stripComment removes a full-line or trailing comment.  Per the manifest
// format a trailing '#' only starts a comment when preceded by whitespace,
// so URL fragments like "#egg=foo" are left intact.
func stripComment(line string) string {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "#") {
		return ""
	}
	for i := 1; i < len(line); i++ {
		if line[i] == '#' && (line[i-1] == ' ' || line[i-1] == '\t') {
			return line[:i]
		}
	}
	return line
}

var (
	reVCSPrefix = regexp.MustCompile(`^(git|hg|svn|bzr)\+[a-zA-Z][a-zA-Z0-9+.-]*://`)
	reName      = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*`)
	reNameExact = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)
	reSpecifier = regexp.MustCompile(`^(===|==|!=|<=|>=|~=|<|>)\s*(\S+)$`)
)

// ParseRequirement parses a single manifest entry: a bare name, a name with
// extras and/or version specifiers, a PEP 508 direct reference, or a VCS
// reference.
func ParseRequirement(s string) (Requirement, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Requirement{}, fmt.Errorf("empty requirement")
	}

	if reVCSPrefix.MatchString(s) {
		return parseVCSRequirement(s)
	}

	var req Requirement

	// split off an environment marker first; a ';' cannot occur in a name,
	// extras list, or version
	if idx := strings.Index(s, ";"); idx != -1 {
		req.Marker = strings.TrimSpace(s[idx+1:])
		s = strings.TrimSpace(s[:idx])
		if req.Marker == "" {
			return Requirement{}, fmt.Errorf("empty environment marker")
		}
	}

	name := reName.FindString(s)
	if name == "" {
		return Requirement{}, fmt.Errorf("invalid requirement %q: expected a package name", s)
	}
	if !reNameExact.MatchString(name) {
		return Requirement{}, fmt.Errorf("invalid package name %q", name)
	}
	req.Name = name
	rest := strings.TrimSpace(s[len(name):])

	// optional extras: name[extra1,extra2]
	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end == -1 {
			return Requirement{}, fmt.Errorf("unterminated extras list in %q", s)
		}
		extras, err := parseExtras(rest[1:end])
		if err != nil {
			return Requirement{}, fmt.Errorf("invalid extras in %q: %w", s, err)
		}
		req.Extras = extras
		rest = strings.TrimSpace(rest[end+1:])
	}

	if rest == "" {
		return req, nil
	}

	// PEP 508 direct reference: name @ url
	if strings.HasPrefix(rest, "@") {
		u := strings.TrimSpace(rest[1:])
		if u == "" {
			return Requirement{}, fmt.Errorf("missing URL in direct reference %q", s)
		}
		req.URL = u
		return req, nil
	}

	specs, err := parseSpecifierSet(rest)
	if err != nil {
		return Requirement{}, fmt.Errorf("invalid requirement %q: %w", s, err)
	}
	req.Specifiers = specs
	return req, nil
}

func parseExtras(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty extras list")
	}
	var extras []string
	for _, e := range strings.Split(s, ",") {
		e = strings.TrimSpace(e)
		if !reNameExact.MatchString(e) {
			return nil, fmt.Errorf("invalid extra name %q", e)
		}
		extras = append(extras, e)
	}
	return extras, nil
}

func parseSpecifierSet(s string) (SpecifierSet, error) {
	var set SpecifierSet
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		m := reSpecifier.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("invalid version specifier %q", part)
		}
		set = append(set, Specifier{Op: m[1], Version: m[2]})
	}
	return set, nil
}

// parseVCSRequirement parses "vcs+protocol://host/path@ref#egg=name" entries.
func parseVCSRequirement(s string) (Requirement, error) {
	plus := strings.Index(s, "+")
	vcs := VCSType(s[:plus])

	u, err := url.Parse(s[plus+1:])
	if err != nil {
		return Requirement{}, fmt.Errorf("invalid VCS reference %q: %w", s, err)
	}

	req := Requirement{VCS: &VCSRef{Type: vcs}}

	// fragment carries the egg name and optional subdirectory
	if u.Fragment != "" {
		vals, err := url.ParseQuery(u.Fragment)
		if err != nil {
			return Requirement{}, fmt.Errorf("invalid VCS reference fragment in %q: %w", s, err)
		}
		req.Name = vals.Get("egg")
		req.VCS.Subdirectory = vals.Get("subdirectory")
	}
	if req.Name != "" && !reNameExact.MatchString(req.Name) {
		return Requirement{}, fmt.Errorf("invalid egg name %q", req.Name)
	}
	u.Fragment = ""

	// the revision follows the last '@' in the path, ex: .../repo@v1.2.3
	if idx := strings.LastIndex(u.Path, "@"); idx != -1 {
		req.VCS.Ref = u.Path[idx+1:]
		if req.VCS.Ref == "" {
			return Requirement{}, fmt.Errorf("empty revision in VCS reference %q", s)
		}
		u.Path = u.Path[:idx]
	}
	req.VCS.URL = u.String()
	return req, nil
}
