package domain

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.trai.ch/zerr"
)

// Command is a single external program invocation. Arguments are passed
// verbatim to the process; no shell interprets them.
type Command struct {
	Program string
	Args    []string
	Dir     string
	Timeout time.Duration
	// Package is the ID of the package the step belongs to.
	Package string
}

// String renders the command for logs and error reports.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Program
	}
	return c.Program + " " + strings.Join(c.Args, " ")
}

// TemplateVars returns the variables available to recipe option templates.
func TemplateVars(sess *Session, pkg *Package) map[string]string {
	return map[string]string{
		"root":       sess.Layout.Root,
		"tools":      sess.Layout.Tools,
		"usr":        sess.Layout.Usr(),
		"sysconfdir": sess.Layout.Sysconf(),
		"sources":    sess.Layout.Sources,
		"workspace":  sess.Layout.Workspace(pkg),
		"target":     sess.Config.TargetTriplet,
		"jobs":       strconv.Itoa(sess.Config.Jobs()),
		"name":       pkg.Name.String(),
		"version":    pkg.Version,
	}
}

// ExpandTemplates substitutes ${var} references in each template.
// A reference to a variable not present in vars is an error.
func ExpandTemplates(templates []string, vars map[string]string) ([]string, error) {
	out := make([]string, len(templates))
	for i, tmpl := range templates {
		var unknown string
		out[i] = os.Expand(tmpl, func(key string) string {
			v, ok := vars[key]
			if !ok && unknown == "" {
				unknown = key
			}
			return v
		})
		if unknown != "" {
			return nil, zerr.With(zerr.With(zerr.Wrap(ErrUnknownTemplateVariable, "cannot expand recipe option"),
				"variable", unknown), "option", tmpl)
		}
	}
	return out, nil
}

// ConfigureCommand returns the configure step of a package.
func ConfigureCommand(sess *Session, pkg *Package) (Command, error) {
	args, err := ExpandTemplates(pkg.Recipe.ConfigureOptions(), TemplateVars(sess, pkg))
	if err != nil {
		return Command{}, err
	}
	return Command{
		Program: "./configure",
		Args:    args,
		Dir:     sess.Layout.Workspace(pkg),
		Timeout: sess.Config.StepTimeout,
		Package: pkg.ID(),
	}, nil
}

// CompileCommand returns the compile step of a package.
func CompileCommand(sess *Session, pkg *Package) (Command, error) {
	extra, err := ExpandTemplates(pkg.Recipe.MakeArgs, TemplateVars(sess, pkg))
	if err != nil {
		return Command{}, err
	}
	return Command{
		Program: "make",
		Args:    append([]string{"-j" + strconv.Itoa(sess.Config.Jobs())}, extra...),
		Dir:     sess.Layout.Workspace(pkg),
		Timeout: sess.Config.StepTimeout,
		Package: pkg.ID(),
	}, nil
}

// InstallCommand returns the install step of a package.
func InstallCommand(sess *Session, pkg *Package) Command {
	return Command{
		Program: "make",
		Args:    []string{"install"},
		Dir:     sess.Layout.Workspace(pkg),
		Timeout: sess.Config.StepTimeout,
		Package: pkg.ID(),
	}
}
