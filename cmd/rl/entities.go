package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"reqline/internal/app"
	"reqline/internal/domain"
	"reqline/internal/engine"
	"reqline/internal/repo"
	"reqline/internal/status"
)

var (
	lockedLabel   = color.New(color.FgRed, color.Bold).SprintFunc()
	archivedLabel = color.New(color.FgHiBlack).SprintFunc()
	defaultLabel  = color.New(color.FgGreen).SprintFunc()
	plainLabel    = color.New(color.FgYellow).SprintFunc()
)

// statusLabel colours a status label by its registry flags.
func statusLabel(reg status.Lookup, t domain.EntityType, label string) string {
	s, err := status.Resolve(reg, t, label)
	if err != nil {
		return label
	}
	return colourFor(s)
}

func colourFor(s domain.Status) string {
	switch {
	case s.IsLocked:
		return lockedLabel(s.Label)
	case s.IsArchived:
		return archivedLabel(s.Label)
	case s.IsDefault:
		return defaultLabel(s.Label)
	default:
		return plainLabel(s.Label)
	}
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func statusCmd() *cobra.Command {
	st := &cobra.Command{Use: "status", Short: "Inspect the status registry"}
	var entity string
	list := &cobra.Command{
		Use:   "list",
		Short: "List registered statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rows := a.Registry.All()
				if entity != "" {
					t, ok := domain.ParseEntityType(entity)
					if !ok {
						return fmt.Errorf("unknown entity type %q", entity)
					}
					rows = a.Registry.ByEntity(t)
				}
				if vp.GetBool("json") {
					return printJSON(rows)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Key", "Entity", "Label", "Deletable", "Archived", "Default", "Locked"})
				for _, s := range rows {
					tw.AppendRow(table.Row{s.Key, s.EntityType, colourFor(s), s.IsDeletable, s.IsArchived, s.IsDefault, s.IsLocked})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&entity, "entity", "", "entity type (e.g. Epic or epics)")
	st.AddCommand(list)
	return st
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	var statusFilter string
	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListProjects(ctx, repo.ProjectFilter{Status: statusFilter})
				if err != nil {
					return err
				}
				if vp.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Updated"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, statusLabel(a.Registry, domain.EntityProject, p.Status), p.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&statusFilter, "status", "", "filter by status")
	prj.AddCommand(list)

	var in engine.ProjectCreate
	create := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				in.CreatedBy = user()
				p, err := a.Engine.CreateProject(ctx, in)
				if err != nil {
					return err
				}
				return printJSONOrText(p, fmt.Sprintf("created project %s (%s)", p.Name, p.ID))
			})
		},
	}
	create.Flags().StringVar(&in.Name, "name", "", "project name")
	create.Flags().StringVar(&in.Description, "description", "", "description")
	create.Flags().StringVar(&in.Status, "status", "", "initial status (registry default when empty)")
	_ = create.MarkFlagRequired("name")
	prj.AddCommand(create)
	prj.AddCommand(deleteCmd(domain.EntityProject))
	return prj
}

func epicCmd() *cobra.Command {
	ep := &cobra.Command{Use: "epic", Short: "Manage epics"}
	var f repo.EpicFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List epics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListEpics(ctx, f)
				if err != nil {
					return err
				}
				if vp.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Key", "Title", "Status", "Project", "ID"})
				for _, e := range items {
					project := ""
					if e.ProjectID != nil {
						project = *e.ProjectID
					}
					tw.AppendRow(table.Row{e.Key, e.Title, statusLabel(a.Registry, domain.EntityEpic, e.Status), project, e.ID})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&f.ProjectID, "project", "", "filter by project id")
	list.Flags().StringVar(&f.Status, "status", "", "filter by status")
	ep.AddCommand(list)

	var in engine.EpicCreate
	create := &cobra.Command{
		Use:   "create",
		Short: "Create epic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				in.CreatedBy = user()
				e, err := a.Engine.CreateEpic(ctx, in)
				if err != nil {
					return err
				}
				return printJSONOrText(e, fmt.Sprintf("created epic %s %s (%s)", e.Key, e.Title, e.ID))
			})
		},
	}
	create.Flags().StringVar(&in.ProjectID, "project", "", "project id")
	create.Flags().StringVar(&in.Key, "key", "", "epic key (generated when empty)")
	create.Flags().StringVar(&in.Title, "title", "", "title")
	create.Flags().StringVar(&in.Description, "description", "", "description")
	create.Flags().StringVar(&in.Status, "status", "", "initial status (registry default when empty)")
	_ = create.MarkFlagRequired("title")
	ep.AddCommand(create)
	ep.AddCommand(deleteCmd(domain.EntityEpic))
	return ep
}

// deleteCmd runs the cascade for t and prints what it removed.
func deleteCmd(t domain.EntityType) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete " + t.Label() + " and everything it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				report, err := a.Engine.Delete(ctx, t, args[0])
				if err != nil {
					return err
				}
				if vp.GetBool("json") {
					return printJSON(report)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Entity", "Deleted", "Detached"})
				for _, et := range domain.EntityTypes {
					if report.Deleted[et] == 0 && report.Detached[et] == 0 {
						continue
					}
					tw.AppendRow(table.Row{et, report.Deleted[et], report.Detached[et]})
				}
				tw.AppendFooter(table.Row{"Total", report.Total(), ""})
				tw.Render()
				return nil
			})
		},
	}
}

func storyCmd() *cobra.Command {
	st := &cobra.Command{Use: "story", Short: "Export and import stories"}

	var archive bool
	export := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a story with its acceptance criteria and test cases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				doc, err := a.Engine.ExportStory(ctx, args[0])
				if err != nil {
					return err
				}
				if !archive {
					return printJSON(doc)
				}
				if a.Blob == nil {
					return fmt.Errorf("export archive storage is not configured (set blob.driver)")
				}
				data, err := json.MarshalIndent(doc, "", "  ")
				if err != nil {
					return err
				}
				info, err := a.Blob.Put(ctx, engine.ArchiveKey(doc.Key, time.Now()), bytes.NewReader(data), "application/json")
				if err != nil {
					return err
				}
				return printJSONOrText(info, fmt.Sprintf("archived %s to %s (%d bytes)", doc.Key, info.Key, info.Size))
			})
		},
	}
	export.Flags().BoolVar(&archive, "archive", false, "write the export to the blob store instead of stdout")
	st.AddCommand(export)

	var epicID, file string
	imp := &cobra.Command{
		Use:   "import",
		Short: "Import a story export under an epic",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var doc engine.StoryDocument
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				s, err := a.Engine.ImportStory(ctx, epicID, doc, user())
				if err != nil {
					return err
				}
				return printJSONOrText(s, fmt.Sprintf("imported %s as %s (%s)", doc.Key, s.Key, s.ID))
			})
		},
	}
	imp.Flags().StringVar(&epicID, "epic", "", "target epic id")
	imp.Flags().StringVar(&file, "file", "", "export document path")
	_ = imp.MarkFlagRequired("epic")
	_ = imp.MarkFlagRequired("file")
	st.AddCommand(imp)
	return st
}

func nextKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next-key <entity>",
		Short: "Preview the next key for epics, stories, acceptance criteria, test cases or test sets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := domain.ParseEntityType(args[0])
			if !ok {
				return fmt.Errorf("unknown entity type %q", args[0])
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var next func(context.Context) (string, error)
				switch t {
				case domain.EntityEpic:
					next = a.Engine.NextEpicKey
				case domain.EntityStory:
					next = a.Engine.NextStoryKey
				case domain.EntityAcceptanceCriterion:
					next = a.Engine.NextAcceptanceCriterionKey
				case domain.EntityTestCase:
					next = a.Engine.NextTestCaseKey
				case domain.EntityTestSet:
					next = a.Engine.NextTestSetKey
				default:
					return fmt.Errorf("%s records have no key", t.Label())
				}
				key, err := next(ctx)
				if err != nil {
					return err
				}
				return printJSONOrText(map[string]string{"key": key}, key)
			})
		},
	}
}

func testSetCmd() *cobra.Command {
	ts := &cobra.Command{Use: "test-set", Short: "Inspect test sets"}
	ts.AddCommand(&cobra.Command{
		Use:   "runs <id>",
		Short: "List the runs of a test set with a status summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				set, err := a.Engine.GetTestSet(ctx, args[0])
				if err != nil {
					return err
				}
				runs, err := a.Engine.ListTestRunsByTestSet(ctx, set.ID)
				if err != nil {
					return err
				}
				summary, err := a.Engine.RunSummary(ctx, set.ID)
				if err != nil {
					return err
				}
				if vp.GetBool("json") {
					return printJSON(map[string]any{"test_set": set, "runs": runs, "summary": summary})
				}
				fmt.Printf("%s %s [%s]\n", set.Key, set.Title, statusLabel(a.Registry, domain.EntityTestSet, set.Status))
				tw := newTable()
				tw.AppendHeader(table.Row{"Run", "Test Case", "Status", "Executed By", "Executed At"})
				for _, r := range runs {
					tw.AppendRow(table.Row{r.ID, r.TestCaseID, statusLabel(a.Registry, domain.EntityTestRun, r.Status), deref(r.ExecutedBy), deref(r.ExecutedAt)})
				}
				counts := make([]string, 0, len(summary))
				for _, c := range summary {
					counts = append(counts, fmt.Sprintf("%s=%d", c.Status, c.Count))
				}
				tw.AppendFooter(table.Row{"", "", strings.Join(counts, " "), "", ""})
				tw.Render()
				return nil
			})
		},
	})
	return ts
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
