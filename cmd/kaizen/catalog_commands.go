package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kaizen/internal/api"
	"kaizen/internal/catalog"
	"kaizen/internal/config"
	"kaizen/internal/subtitle"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects and their stages",
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				resp, err := catalogService(cfg, store).Projects(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				if len(resp.Projects) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No projects")
					return nil
				}
				rows := make([][]string, 0, len(resp.Projects))
				for _, p := range resp.Projects {
					rows = append(rows, []string{strconv.FormatInt(p.ID, 10), p.Name, p.Description})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Description"}, rows, []columnAlignment{alignRight}))
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	projectCmd.AddCommand(listCmd)

	var description string
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *catalog.Store) error {
				project, err := store.CreateProject(cmd.Context(), args[0], description)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created project %d (%s)\n", project.ID, project.Name)
				return nil
			})
		},
	}
	createCmd.Flags().StringVar(&description, "description", "", "Project description")
	projectCmd.AddCommand(createCmd)

	projectCmd.AddCommand(newStageCommand(ctx))
	return projectCmd
}

func newStageCommand(ctx *commandContext) *cobra.Command {
	stageCmd := &cobra.Command{
		Use:   "stage",
		Short: "Manage stages within a project",
	}

	stageCmd.AddCommand(&cobra.Command{
		Use:   "list <project-id>",
		Short: "List a project's stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				resp, err := catalogService(cfg, store).Stages(cmd.Context(), projectID)
				if err != nil {
					return err
				}
				if len(resp.Stages) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No stages")
					return nil
				}
				rows := make([][]string, 0, len(resp.Stages))
				for _, st := range resp.Stages {
					rows = append(rows, []string{strconv.FormatInt(st.ID, 10), st.Name, st.BeforeVideoPath, st.AfterVideoPath})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Before", "After"}, rows, []columnAlignment{alignRight}))
				return nil
			})
		},
	})

	var (
		description string
		beforePath  string
		afterPath   string
	)
	createCmd := &cobra.Command{
		Use:   "create <project-id> <name>",
		Short: "Create a stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *catalog.Store) error {
				stage, err := store.CreateStage(cmd.Context(), projectID, args[1], description)
				if err != nil {
					return err
				}
				if beforePath != "" || afterPath != "" {
					stage.BeforeVideoPath = expandVideoPath(beforePath)
					stage.AfterVideoPath = expandVideoPath(afterPath)
					if err := store.UpdateStage(cmd.Context(), *stage); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created stage %d (%s)\n", stage.ID, stage.Name)
				return nil
			})
		},
	}
	createCmd.Flags().StringVar(&description, "description", "", "Stage description")
	createCmd.Flags().StringVar(&beforePath, "before", "", "Before video file")
	createCmd.Flags().StringVar(&afterPath, "after", "", "After video file")
	stageCmd.AddCommand(createCmd)

	return stageCmd
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Manage the processes of a stage",
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list <stage-id>",
		Short: "List a stage's processes in play order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stageID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				resp, err := catalogService(cfg, store).Stage(cmd.Context(), stageID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderProcessTable(resp))
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	processCmd.AddCommand(listCmd)

	var draft processFlags
	addCmd := &cobra.Command{
		Use:   "add <stage-id> <name>",
		Short: "Append a process to a stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stageID, err := parseID(args[0])
			if err != nil {
				return err
			}
			p := draft.process()
			p.StageID = stageID
			p.Name = args[1]
			return ctx.withStore(func(_ *config.Config, store *catalog.Store) error {
				created, err := store.CreateProcess(cmd.Context(), p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created process %d (%s), saves %s\n", created.ID, created.Name, seconds(created.TimeSaved))
				return nil
			})
		},
	}
	draft.register(addCmd)
	processCmd.AddCommand(addCmd)

	processCmd.AddCommand(&cobra.Command{
		Use:   "move <process-id> <index>",
		Short: "Move a process to a zero-based position in its stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			index, err := strconv.Atoi(args[1])
			if err != nil || index < 0 {
				return fmt.Errorf("invalid index %q", args[1])
			}
			return ctx.withStore(func(_ *config.Config, store *catalog.Store) error {
				if err := store.MoveProcess(cmd.Context(), id, index); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved process %d to position %d\n", id, index)
				return nil
			})
		},
	})

	processCmd.AddCommand(&cobra.Command{
		Use:   "remove <process-id>",
		Short: "Delete a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *catalog.Store) error {
				if err := store.DeleteProcess(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed process %d\n", id)
				return nil
			})
		},
	})

	return processCmd
}

type processFlags struct {
	description  string
	note         string
	kind         string
	mode         string
	text         string
	afterText    string
	beforeWindow string
	afterWindow  string
}

func (f *processFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.description, "description", "", "Process description")
	cmd.Flags().StringVar(&f.note, "note", "", "Improvement note")
	cmd.Flags().StringVar(&f.kind, "type", string(catalog.ProcessNormal), "normal, new_step, or cancelled")
	cmd.Flags().StringVar(&f.mode, "subtitle-mode", string(catalog.SubtitleCombined), "combined or separate")
	cmd.Flags().StringVar(&f.text, "text", "", "Narration text")
	cmd.Flags().StringVar(&f.afterText, "after-text", "", "Narration for the after leg in separate mode")
	cmd.Flags().StringVar(&f.beforeWindow, "before", "", "Before window as start-end seconds")
	cmd.Flags().StringVar(&f.afterWindow, "after", "", "After window as start-end seconds")
}

func (f *processFlags) process() catalog.Process {
	p := catalog.Process{
		Description:     f.description,
		ImprovementNote: f.note,
		Type:            catalog.ProcessType(strings.TrimSpace(f.kind)),
		SubtitleMode:    catalog.SubtitleMode(strings.TrimSpace(f.mode)),
		SubtitleText:    f.text,
		SubtitleAfter:   f.afterText,
	}
	p.BeforeStart, p.BeforeEnd = parseWindow(f.beforeWindow)
	p.AfterStart, p.AfterEnd = parseWindow(f.afterWindow)
	return p
}

// parseWindow reads "start-end" in seconds. Anything unparseable yields an
// empty window, which the store's validation reports against the type.
func parseWindow(value string) (float64, float64) {
	startRaw, endRaw, ok := strings.Cut(strings.TrimSpace(value), "-")
	if !ok {
		return 0, 0
	}
	start, err1 := strconv.ParseFloat(strings.TrimSpace(startRaw), 64)
	end, err2 := strconv.ParseFloat(strings.TrimSpace(endRaw), 64)
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return start, end
}

func renderProcessTable(resp api.StageResponse) string {
	if len(resp.Processes) == 0 {
		return fmt.Sprintf("Stage %d (%s) has no processes", resp.Stage.ID, resp.Stage.Name)
	}
	rows := make([][]string, 0, len(resp.Processes)+1)
	for i, p := range resp.Processes {
		rows = append(rows, []string{
			strconv.Itoa(i),
			strconv.FormatInt(p.ID, 10),
			p.Name,
			string(p.Type),
			windowLabel(p.HasBefore(), p.BeforeStart, p.BeforeEnd),
			windowLabel(p.HasAfter(), p.AfterStart, p.AfterEnd),
			seconds(p.TimeSaved),
			string(p.SubtitleMode),
		})
	}
	rows = append(rows, []string{"", "", "Total", "", "", "", seconds(resp.TimeSaved), ""})
	return renderTable(
		[]string{"#", "ID", "Name", "Type", "Before", "After", "Saved", "Mode"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}

func windowLabel(present bool, start, end float64) string {
	if !present {
		return "-"
	}
	return fmt.Sprintf("%.1f-%.1f", start, end)
}

func catalogService(cfg *config.Config, store *catalog.Store) *api.CatalogService {
	return api.NewCatalogService(store, subtitle.StyleFromConfig(cfg.Subtitles))
}

func expandVideoPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return path
	}
	return expanded
}
