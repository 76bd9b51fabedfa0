package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/contextsync/internal/canon"
	"github.com/roach88/contextsync/internal/domain"
)

// ProjectSummary is one row of the projects listing.
type ProjectSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Contexts      int    `json:"contexts"`
	Relationships int    `json:"relationships"`
	BuiltIn       bool   `json:"built_in"`
	Fingerprint   string `json:"fingerprint"`
}

// ProjectsResult is the output of the projects command.
type ProjectsResult struct {
	Projects []ProjectSummary `json:"projects"`
}

func (r ProjectsResult) renderText(w io.Writer, verbose bool) {
	if len(r.Projects) == 0 {
		fmt.Fprintln(w, "No local projects.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCONTEXTS\tRELATIONSHIPS\tBUILT-IN")
	for _, p := range r.Projects {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%t\n", p.ID, p.Name, p.Contexts, p.Relationships, p.BuiltIn)
	}
	tw.Flush()
	if verbose {
		for _, p := range r.Projects {
			fmt.Fprintf(w, "%s %s\n", p.Fingerprint[:12], p.ID)
		}
	}
}

// NewProjectsCommand creates the projects command.
func NewProjectsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects in the local database",
		Long: `List every project stored in the local database.

Built-in example projects are marked; they are never migrated or deleted
by cleanup.

Examples:
  contextsync projects --db ./contextsync.db
  contextsync projects --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjects(rootOpts, cmd)
		},
	}
}

func runProjects(opts *RootOptions, cmd *cobra.Command) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st, opts.Logger)

	projects, err := st.ListProjects(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list projects", err)
	}

	result := ProjectsResult{Projects: make([]ProjectSummary, 0, len(projects))}
	for _, p := range projects {
		fp, err := canon.Fingerprint(canon.DomainProject, p)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to fingerprint project", err)
		}
		result.Projects = append(result.Projects, ProjectSummary{
			ID:            p.ID,
			Name:          p.Name,
			Contexts:      len(p.Contexts),
			Relationships: len(p.Relationships),
			BuiltIn:       domain.IsBuiltIn(p),
			Fingerprint:   fp,
		})
	}
	return opts.formatter(cmd).Success(result)
}
